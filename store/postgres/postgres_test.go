package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goGate/store"
)

var userColumns = []string{"username", "role", "password_hash", "email", "description", "created_at", "last_login"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestUsersGet_Found(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT\s+username,\s*role,\s*password_hash.*FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("admin", "admin", "hash", "admin@localhost.local", "admin test user", created, nil))

	got, err := users.Get(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, "admin@localhost.local", got.Email)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.LastLogin.IsZero())
}

func TestUsersGet_NotFound(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+username`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := users.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsersGet_DBError(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+username`).
		WithArgs("alice").
		WillReturnError(errors.New("db down"))

	_, err := users.Get(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Contains(t, err.Error(), "db down")
}

func TestUsersPut_Upserts(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users.*ON\s+CONFLICT\s+\(username\)\s+DO\s+UPDATE`).
		WithArgs("bob", "user", "hash", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := users.Put(context.Background(), store.UserRecord{
		Username:     "bob",
		Role:         "user",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
}

func TestUsersCreate_Inserts(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users.*ON\s+CONFLICT\s+\(username\)\s+DO\s+NOTHING`).
		WithArgs("bob", "user", "hash", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := users.Create(context.Background(), store.UserRecord{Username: "bob", Role: "user", PasswordHash: "hash"})
	require.NoError(t, err)
}

func TestUsersCreate_Conflict(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectExec(`DO\s+NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := users.Create(context.Background(), store.UserRecord{Username: "bob", Role: "user"})
	assert.ErrorIs(t, err, store.ErrExists)
}

func TestUsersDeleteAndList(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)
	now := time.Now().UTC()

	mock.ExpectExec(`^DELETE\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`).
		WithArgs("bob").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+users\s+ORDER\s+BY\s+username$`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("admin", "admin", "h1", "", "", now, now).
			AddRow("user", "user", "h2", "", "", now, nil))

	require.NoError(t, users.Delete(context.Background(), "bob"))

	list, err := users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "admin", list[0].Username)
	assert.False(t, list[0].LastLogin.IsZero())
	assert.True(t, list[1].LastLogin.IsZero())
}

func TestRolesLevel(t *testing.T) {
	db, mock := newMock(t)
	roles := NewRoles(db)

	mock.ExpectQuery(`^SELECT\s+level\s+FROM\s+roles\s+WHERE\s+name\s*=\s*\$1$`).
		WithArgs("editor").
		WillReturnRows(sqlmock.NewRows([]string{"level"}).AddRow(60))
	mock.ExpectQuery(`^SELECT\s+level\s+FROM\s+roles`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	level, err := roles.Level(context.Background(), "editor")
	require.NoError(t, err)
	assert.Equal(t, 60, level)

	_, err = roles.Level(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRolesPutDeleteList(t *testing.T) {
	db, mock := newMock(t)
	roles := NewRoles(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+roles.*ON\s+CONFLICT\s+\(name\)`).
		WithArgs("editor", 60).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+roles\s+WHERE\s+name\s*=\s*\$1$`).
		WithArgs("editor").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`^SELECT\s+name,\s*level\s+FROM\s+roles$`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "level"}).
			AddRow("admin", 100).
			AddRow("user", 50))

	ctx := context.Background()
	require.NoError(t, roles.Put(ctx, "editor", 60))
	require.NoError(t, roles.Delete(ctx, "editor"))

	all, err := roles.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"admin": 100, "user": 50}, all)
}

func TestRegistrationsConsume(t *testing.T) {
	db, mock := newMock(t)
	regs := NewRegistrations(db)
	created := time.Now().UTC()
	expires := created.Add(time.Hour)

	q := `(?s)^DELETE\s+FROM\s+pending_registrations\s+WHERE\s+token\s*=\s*\$1\s+RETURNING`
	mock.ExpectQuery(q).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "username", "role", "password_hash", "email", "description", "created_at", "expires_at"}).
			AddRow("tok", "carol", "user", "hash", "c@example.com", "", created, expires))
	mock.ExpectQuery(q).
		WithArgs("tok").
		WillReturnError(sql.ErrNoRows)

	reg, err := regs.Consume(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "carol", reg.User.Username)
	assert.True(t, reg.ExpiresAt.Equal(expires))

	_, err = regs.Consume(context.Background(), "tok")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistrationsCreateAndPurge(t *testing.T) {
	db, mock := newMock(t)
	regs := NewRegistrations(db)
	now := time.Now()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+pending_registrations`).
		WithArgs("tok", "carol", "user", "hash", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+pending_registrations\s+WHERE\s+expires_at\s*<\s*\$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	ctx := context.Background()
	require.NoError(t, regs.Create(ctx, store.PendingRegistration{
		Token:     "tok",
		User:      store.UserRecord{Username: "carol", Role: "user", PasswordHash: "hash", CreatedAt: now},
		ExpiresAt: now.Add(time.Hour),
	}))

	n, err := regs.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUsersTouchLastLogin(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+last_login\s*=\s*\$3\s+WHERE\s+username\s*=\s*\$1\s+AND\s+password_hash\s*=\s*\$2$`).
		WithArgs("bob", "h1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, users.TouchLastLogin(context.Background(), "bob", "h1", at))
}

func TestUsersUpdateHash_MissingUser(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$3`).
		WithArgs("ghost", "h1", "h2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`^SELECT\s+EXISTS`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := users.UpdateHash(context.Background(), "ghost", "h1", "h2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsersUpdateHash_StaleHash(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$3`).
		WithArgs("bob", "stale", "h2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`^SELECT\s+EXISTS`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := users.UpdateHash(context.Background(), "bob", "stale", "h2")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUsersUpdateRole(t *testing.T) {
	db, mock := newMock(t)
	users := NewUsers(db)

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+role\s*=\s*\$2\s+WHERE\s+username\s*=\s*\$1$`).
		WithArgs("bob", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+role`).
		WithArgs("ghost", "admin").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, users.UpdateRole(context.Background(), "bob", "admin"))
	assert.ErrorIs(t, users.UpdateRole(context.Background(), "ghost", "admin"), store.ErrNotFound)
}
