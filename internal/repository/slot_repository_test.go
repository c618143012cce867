package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var slotRowColumns = []string{
	"slot_id", "is_available", "is_reserved", "is_paid", "gate_status", "light_status",
	"reserved_by", "payment_method", "version", "created_at", "updated_at",
}

func TestSlotRepoList(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM slots ORDER BY slot_id").
		WillReturnRows(sqlmock.NewRows(slotRowColumns).
			AddRow(int64(1), true, false, false, "open", "green", nil, nil, int64(0), now, now).
			AddRow(int64(2), false, true, false, "closed", "yellow", "7", nil, int64(3), now, now).
			AddRow(int64(3), false, true, true, "closed", "red", "9", "card", int64(5), now, now).
			AddRow(int64(4), false, false, false, "open", "red", nil, nil, int64(1), now, now))

	slots, err := NewSlotRepo(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(slots))
	}
	want := []struct {
		state  slot.State
		owner  string
		sensor bool
	}{
		{slot.Free, "", false},
		{slot.Pending, "7", false},
		{slot.Occupied, "9", false},
		{slot.Free, "", true},
	}
	for i, w := range want {
		s := slots[i]
		if s.State != w.state || s.Owner != w.owner || s.SensorOccupied != w.sensor {
			t.Errorf("slot %d = %+v, want %+v", s.ID, s, w)
		}
	}
	if slots[2].PaymentMethod != "card" || slots[2].Version != 5 {
		t.Errorf("slot 3 = %+v", slots[2])
	}
}

func TestSlotRepoListRejectsCorruptRow(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM slots").
		WillReturnRows(sqlmock.NewRows(slotRowColumns).
			AddRow(int64(1), true, true, false, "open", "green", "7", nil, int64(0), now, now))

	if _, err := NewSlotRepo(db).List(context.Background()); err == nil {
		t.Fatal("expected error for available slot that carries a claim")
	}
}

func TestSlotRepoGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM slots WHERE slot_id=\\?").WithArgs(42).
		WillReturnRows(sqlmock.NewRows(slotRowColumns))

	_, err := NewSlotRepo(db).Get(context.Background(), 42)
	if !errors.Is(err, slot.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSlotRepoFindClaimByOwner(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM slots WHERE reserved_by=\\?").WithArgs("7").
		WillReturnRows(sqlmock.NewRows(slotRowColumns).
			AddRow(int64(2), false, true, false, "closed", "yellow", "7", nil, int64(1), now, now))
	mock.ExpectQuery("SELECT .+ FROM slots WHERE reserved_by=\\?").WithArgs("8").
		WillReturnRows(sqlmock.NewRows(slotRowColumns))

	repo := NewSlotRepo(db)
	s, ok, err := repo.FindClaimByOwner(context.Background(), "7")
	if err != nil || !ok || s.ID != 2 {
		t.Fatalf("FindClaimByOwner(7) = %+v, %v, %v", s, ok, err)
	}
	_, ok, err = repo.FindClaimByOwner(context.Background(), "8")
	if err != nil || ok {
		t.Fatalf("FindClaimByOwner(8) = %v, %v; want no claim", ok, err)
	}
}

func TestSlotRepoCompareAndSwap(t *testing.T) {
	db, mock := newMockDB(t)
	next := slot.Slot{ID: 1, State: slot.Pending, Owner: "7"}
	mock.ExpectExec("UPDATE slots SET .+ WHERE slot_id=\\? AND version=\\?").
		WithArgs(false, true, false, "closed", "yellow", "7", nil, sqlmock.AnyArg(), 1, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := NewSlotRepo(db).CompareAndSwap(context.Background(), 4, next)
	if err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}
	if saved.Version != 5 {
		t.Errorf("Version = %d, want 5", saved.Version)
	}
	if saved.UpdatedAt.IsZero() || saved.UpdatedAt.Location() != time.UTC {
		t.Errorf("UpdatedAt = %v, want a UTC timestamp", saved.UpdatedAt)
	}
}

func TestSlotRepoCompareAndSwapStale(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE slots SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewSlotRepo(db).CompareAndSwap(context.Background(), 4, slot.Slot{ID: 1})
	if !errors.Is(err, slot.ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
}

func TestSlotRepoEnsureFree(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT IGNORE INTO slots").
		WithArgs(1, true, false, false, "open", "green", 2, true, false, false, "open", "green").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := NewSlotRepo(db).EnsureFree(context.Background(), []int{1, 2})
	if err != nil || n != 1 {
		t.Fatalf("EnsureFree = %d, %v; want 1, nil", n, err)
	}
}
