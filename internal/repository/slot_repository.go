package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// SlotRepo stores slots in the `slots` table.  Every write is guarded by the
// version column so a transition computed from a stale read never lands.
type SlotRepo struct{ DB *sql.DB }

func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{DB: db} }

const slotColumns = "slot_id,is_available,is_reserved,is_paid,gate_status,light_status,reserved_by,payment_method,version,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (slot.Slot, error) {
	var (
		r             slot.Record
		reservedBy    sql.NullString
		paymentMethod sql.NullString
	)
	if err := row.Scan(&r.SlotID, &r.IsAvailable, &r.IsReserved, &r.IsPaid,
		&r.GateStatus, &r.LightStatus, &reservedBy, &paymentMethod,
		&r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return slot.Slot{}, err
	}
	if reservedBy.Valid {
		r.ReservedBy = &reservedBy.String
	}
	if paymentMethod.Valid {
		r.PaymentMethod = &paymentMethod.String
	}
	return slot.FromRecord(r)
}

// List returns all slots ordered by slot_id.
func (r *SlotRepo) List(ctx context.Context) ([]slot.Slot, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+slotColumns+" FROM slots ORDER BY slot_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []slot.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns slot.ErrNotFound when slot_id does not exist.
func (r *SlotRepo) Get(ctx context.Context, id int) (slot.Slot, error) {
	s, err := scanSlot(r.DB.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE slot_id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return slot.Slot{}, fmt.Errorf("%w: slot %d", slot.ErrNotFound, id)
	}
	return s, err
}

// FindClaimByOwner returns the slot reserved or paid by owner.
func (r *SlotRepo) FindClaimByOwner(ctx context.Context, owner string) (slot.Slot, bool, error) {
	s, err := scanSlot(r.DB.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE reserved_by=? AND (is_reserved=1 OR is_paid=1) ORDER BY slot_id LIMIT 1",
		owner))
	if errors.Is(err, sql.ErrNoRows) {
		return slot.Slot{}, false, nil
	}
	if err != nil {
		return slot.Slot{}, false, err
	}
	return s, true, nil
}

// CompareAndSwap writes next only if the row still carries version expected.
// A zero-row update is reported as slot.ErrStale.
func (r *SlotRepo) CompareAndSwap(ctx context.Context, expected uint64, next slot.Slot) (slot.Slot, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := next.Record()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE slots SET is_available=?, is_reserved=?, is_paid=?, gate_status=?, light_status=?,
		reserved_by=?, payment_method=?, version=version+1, updated_at=?
		WHERE slot_id=? AND version=?`,
		rec.IsAvailable, rec.IsReserved, rec.IsPaid, rec.GateStatus, rec.LightStatus,
		nullable(rec.ReservedBy), nullable(rec.PaymentMethod), now,
		next.ID, expected)
	if err != nil {
		return slot.Slot{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return slot.Slot{}, err
	}
	if n == 0 {
		return slot.Slot{}, slot.ErrStale
	}
	next.Version = expected + 1
	next.UpdatedAt = now
	return next, nil
}

// EnsureFree inserts free slots for ids that do not exist yet.  Existing rows
// are left untouched, which keeps seeding idempotent.
func (r *SlotRepo) EnsureFree(ctx context.Context, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	free := slot.Slot{}.Record()
	query := "INSERT IGNORE INTO slots (slot_id,is_available,is_reserved,is_paid,gate_status,light_status) VALUES "
	args := make([]any, 0, len(ids)*6)
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?,?,?,?)"
		args = append(args, id, free.IsAvailable, free.IsReserved, free.IsPaid, free.GateStatus, free.LightStatus)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
