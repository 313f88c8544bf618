package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursekeep.org/internal/auth"
)

var userRowColumns = []string{"id", "username", "password_hash", "role", "disabled", "budget", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPGRepository(db), mock
}

func TestPGCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`insert into users`).
		WithArgs(sqlmock.AnyArg(), "alice", "hash", "user", false, 12.5).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := User{Username: "alice", PasswordHash: "hash", Role: auth.RoleUser, Budget: 12.5}
	require.NoError(t, repo.Create(context.Background(), &u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCreateUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`insert into users`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	u := User{Username: "alice", Role: auth.RoleUser}
	err := repo.Create(context.Background(), &u)
	assert.ErrorIs(t, err, auth.ErrConflict)
	assert.Empty(t, u.ID)
}

func TestPGFindByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select .* from users where username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("01J0000000000000000000000A", "alice", "hash", "admin", true, 3.0, now, now))

	u, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, u.Role)
	assert.True(t, u.Disabled)
	assert.Equal(t, 3.0, u.Budget)
}

func TestPGFindNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`select .* from users where id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestPGFindPropagatesDriverErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`select .* from users where username = \$1`).WillReturnError(boom)

	_, err := repo.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
}

func TestPGUpdateBuildsSetClause(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	name := "bob"
	disabled := true

	mock.ExpectQuery(`update users set username = \$1, disabled = \$2, updated_at = now\(\) where id = \$3 returning`).
		WithArgs("bob", true, "id-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("id-1", "bob", "hash", "user", true, 0.0, now, now))

	u, err := repo.Update(context.Background(), "id-1", Patch{Username: &name, Disabled: &disabled})
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.True(t, u.Disabled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGUpdateErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	name := "taken"

	mock.ExpectQuery(`update users set`).WillReturnError(sql.ErrNoRows)
	_, err := repo.Update(context.Background(), "missing", Patch{Username: &name})
	assert.ErrorIs(t, err, auth.ErrNotFound)

	mock.ExpectQuery(`update users set`).WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	_, err = repo.Update(context.Background(), "id-1", Patch{Username: &name})
	assert.ErrorIs(t, err, auth.ErrConflict)
}

func TestPGDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`delete from users where id = \$1`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "id-1"))

	mock.ExpectExec(`delete from users where id = \$1`).
		WithArgs("id-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "id-2"), auth.ErrNotFound)
}

func TestPGNilDB(t *testing.T) {
	repo := NewPGRepository(nil)
	_, err := repo.FindByID(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, repo.Ping(context.Background()))
}
