// Package postgres stores users, roles and pending registrations in
// PostgreSQL through database/sql and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MrEthical07/goGate/store"
	"github.com/MrEthical07/goGate/store/postgres/migrations"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, unavailable(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable(err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func unavailable(err error) error {
	return fmt.Errorf("%w: db error: %v", store.ErrUnavailable, err)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Users is the postgres credential store.
type Users struct {
	db DBTX
}

func NewUsers(db DBTX) *Users {
	return &Users{db: db}
}

func (u *Users) Get(ctx context.Context, username string) (store.UserRecord, error) {
	query :=
		`SELECT username, role, password_hash, email, description, created_at, last_login
		 FROM users
		 WHERE username = $1`

	var (
		rec       store.UserRecord
		lastLogin sql.NullTime
	)
	err := u.db.QueryRowContext(ctx, query, username).Scan(
		&rec.Username, &rec.Role, &rec.PasswordHash, &rec.Email, &rec.Description, &rec.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.UserRecord{}, store.ErrNotFound
		}
		return store.UserRecord{}, unavailable(err)
	}
	rec.LastLogin = lastLogin.Time

	return rec, nil
}

func (u *Users) Create(ctx context.Context, user store.UserRecord) error {
	query :=
		`INSERT INTO users (username, role, password_hash, email, description, created_at, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (username) DO NOTHING`

	res, err := u.db.ExecContext(ctx, query,
		user.Username, user.Role, user.PasswordHash, user.Email, user.Description, user.CreatedAt, nullTime(user.LastLogin))
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return store.ErrExists
	}
	return nil
}

func (u *Users) Put(ctx context.Context, user store.UserRecord) error {
	query :=
		`INSERT INTO users (username, role, password_hash, email, description, created_at, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (username) DO UPDATE SET
		     role = EXCLUDED.role,
		     password_hash = EXCLUDED.password_hash,
		     email = EXCLUDED.email,
		     description = EXCLUDED.description,
		     last_login = EXCLUDED.last_login`

	_, err := u.db.ExecContext(ctx, query,
		user.Username, user.Role, user.PasswordHash, user.Email, user.Description, user.CreatedAt, nullTime(user.LastLogin))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (u *Users) Delete(ctx context.Context, username string) error {
	if _, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username); err != nil {
		return unavailable(err)
	}
	return nil
}

func (u *Users) TouchLastLogin(ctx context.Context, username, expectedHash string, at time.Time) error {
	query :=
		`UPDATE users SET last_login = $3
		 WHERE username = $1 AND password_hash = $2`

	res, err := u.db.ExecContext(ctx, query, username, expectedHash, at)
	if err != nil {
		return unavailable(err)
	}
	return u.conditionalResult(ctx, res, username)
}

func (u *Users) UpdateHash(ctx context.Context, username, expectedHash, newHash string) error {
	query :=
		`UPDATE users SET password_hash = $3
		 WHERE username = $1 AND password_hash = $2`

	res, err := u.db.ExecContext(ctx, query, username, expectedHash, newHash)
	if err != nil {
		return unavailable(err)
	}
	return u.conditionalResult(ctx, res, username)
}

func (u *Users) UpdateRole(ctx context.Context, username, role string) error {
	res, err := u.db.ExecContext(ctx, `UPDATE users SET role = $2 WHERE username = $1`, username, role)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// conditionalResult tells a missing row from a hash mismatch when a
// conditional update touched nothing.
func (u *Users) conditionalResult(ctx context.Context, res sql.Result, username string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = u.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return unavailable(err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (u *Users) List(ctx context.Context) ([]store.UserRecord, error) {
	query :=
		`SELECT username, role, password_hash, email, description, created_at, last_login
		 FROM users
		 ORDER BY username`

	rows, err := u.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []store.UserRecord{}
	for rows.Next() {
		var (
			rec       store.UserRecord
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&rec.Username, &rec.Role, &rec.PasswordHash, &rec.Email, &rec.Description, &rec.CreatedAt, &lastLogin); err != nil {
			return nil, unavailable(err)
		}
		rec.LastLogin = lastLogin.Time
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Roles is the postgres role table.
type Roles struct {
	db DBTX
}

func NewRoles(db DBTX) *Roles {
	return &Roles{db: db}
}

func (r *Roles) Level(ctx context.Context, role string) (int, error) {
	var level int
	err := r.db.QueryRowContext(ctx, `SELECT level FROM roles WHERE name = $1`, role).Scan(&level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, unavailable(err)
	}
	return level, nil
}

func (r *Roles) Put(ctx context.Context, role string, level int) error {
	query :=
		`INSERT INTO roles (name, level) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET level = EXCLUDED.level`

	if _, err := r.db.ExecContext(ctx, query, role, level); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Roles) Delete(ctx context.Context, role string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE name = $1`, role); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Roles) List(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, level FROM roles`)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			level int
		)
		if err := rows.Scan(&name, &level); err != nil {
			return nil, unavailable(err)
		}
		out[name] = level
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Registrations is the postgres pending registration store.
type Registrations struct {
	db DBTX
}

func NewRegistrations(db DBTX) *Registrations {
	return &Registrations{db: db}
}

func (r *Registrations) Create(ctx context.Context, reg store.PendingRegistration) error {
	query :=
		`INSERT INTO pending_registrations
		     (token, username, role, password_hash, email, description, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		reg.Token, reg.User.Username, reg.User.Role, reg.User.PasswordHash,
		reg.User.Email, reg.User.Description, reg.User.CreatedAt, reg.ExpiresAt)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Consume deletes and returns the registration in one statement, so two
// concurrent callers cannot both receive it.
func (r *Registrations) Consume(ctx context.Context, token string) (store.PendingRegistration, error) {
	query :=
		`DELETE FROM pending_registrations
		 WHERE token = $1
		 RETURNING token, username, role, password_hash, email, description, created_at, expires_at`

	var reg store.PendingRegistration
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&reg.Token, &reg.User.Username, &reg.User.Role, &reg.User.PasswordHash,
		&reg.User.Email, &reg.User.Description, &reg.User.CreatedAt, &reg.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.PendingRegistration{}, store.ErrNotFound
		}
		return store.PendingRegistration{}, unavailable(err)
	}
	return reg, nil
}

func (r *Registrations) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_registrations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

var (
	_ store.Users         = (*Users)(nil)
	_ store.Roles         = (*Roles)(nil)
	_ store.Registrations = (*Registrations)(nil)
)
