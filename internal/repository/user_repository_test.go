package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestUserRepoCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice", sqlmock.AnyArg(), "user").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewUserRepo(db).Create(context.Background(), "  Alice ", "secret1", "user", 4)
	if !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("err = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepoGetByUsername(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	cols := []string{"id", "username", "password_hash", "role", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT .+ FROM users WHERE username=\\?").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), "alice", "hash", "admin", now, now))
	mock.ExpectQuery("SELECT .+ FROM users WHERE id=\\?").WithArgs(99).
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewUserRepo(db)
	u, err := repo.GetByUsername(context.Background(), "ALICE")
	if err != nil || u.ID != 3 || u.Role != "admin" {
		t.Fatalf("GetByUsername = %+v, %v", u, err)
	}
	if _, err := repo.GetByID(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID err = %v, want ErrNotFound", err)
	}
}

func TestTokenRepoValidateRefresh(t *testing.T) {
	db, mock := newMockDB(t)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	future := time.Now().UTC().Add(time.Hour)
	mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").WithArgs("live").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), future, nil))
	mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), future, time.Now().UTC()))
	mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").WithArgs("expired").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), time.Now().UTC().Add(-time.Hour), nil))
	mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewTokenRepo(db)
	if id, err := repo.ValidateRefresh(context.Background(), "live"); err != nil || id != 5 {
		t.Fatalf("live token = %d, %v", id, err)
	}
	for _, h := range []string{"revoked", "expired", "missing"} {
		if _, err := repo.ValidateRefresh(context.Background(), h); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("%s token err = %v, want ErrTokenInvalid", h, err)
		}
	}
}

func TestTokenRepoConsume(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\\(\\)").WithArgs("live").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT user_id FROM refresh_tokens").WithArgs("live").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(5)))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\\(\\)").WithArgs("live").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTokenRepo(db)
	if id, err := repo.Consume(context.Background(), "live"); err != nil || id != 5 {
		t.Fatalf("first consume = %d, %v", id, err)
	}
	if _, err := repo.Consume(context.Background(), "live"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("second consume err = %v, want ErrTokenInvalid", err)
	}
}
