package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/ids"
)

const pgErrUniqueViolation = "23505"

const userColumns = `id, username, password_hash, role, disabled, budget, created_at, updated_at`

// PGRepository stores users in PostgreSQL through the pgx stdlib driver.
type PGRepository struct {
	db *sql.DB
}

var _ Repository = (*PGRepository)(nil)

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a pgx-backed *sql.DB and applies pool settings.
func OpenPostgres(dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return db, nil
}

// NewPGRepository wraps an open database handle.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection unavailable")
	}
	return r.db.PingContext(ctx)
}

func (r *PGRepository) Create(ctx context.Context, u *User) error {
	if r.db == nil {
		return errors.New("database connection unavailable")
	}
	id := ids.New()
	row := r.db.QueryRowContext(ctx, `
		insert into users (id, username, password_hash, role, disabled, budget)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, id, u.Username, u.PasswordHash, string(u.Role), u.Disabled, u.Budget)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	u.ID = id
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, `select `+userColumns+` from users where id = $1`, id)
}

func (r *PGRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `select `+userColumns+` from users where username = $1`, username)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg string) (User, error) {
	if r.db == nil {
		return User{}, errors.New("database connection unavailable")
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, auth.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *PGRepository) Update(ctx context.Context, id string, patch Patch) (User, error) {
	if r.db == nil {
		return User{}, errors.New("database connection unavailable")
	}
	if patch.empty() {
		return r.FindByID(ctx, id)
	}

	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.Disabled != nil {
		add("disabled", *patch.Disabled)
	}
	if patch.Budget != nil {
		add("budget", *patch.Budget)
	}
	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf(`update users set %s where id = $%d returning %s`,
		strings.Join(setClauses, ", "), idx, userColumns)
	args = append(args, id)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, auth.ErrNotFound
	}
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return u, nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := r.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.Disabled, &u.Budget, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = auth.Role(role)
	return u, nil
}

func mapWriteError(err error) error {
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.ErrConflict
	}
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
