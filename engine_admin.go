package goGate

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGate/store"
)

const maxHashSwapAttempts = 3

// CreateUser adds an account directly, bypassing registration. role must
// exist. Callers are expected to gate this with Authorize.
func (e *Engine) CreateUser(ctx context.Context, username, password, role, email, description string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}
	if err := checkUsername(username); err != nil {
		return UserRecord{}, err
	}
	if err := e.checkPassword(password); err != nil {
		return UserRecord{}, err
	}
	if _, err := e.roles.LevelOf(ctx, role); err != nil {
		return UserRecord{}, e.mapStoreErr("create_user", err)
	}

	hash, err := e.passwordHash.Hash(username, password)
	if err != nil {
		return UserRecord{}, e.mapStoreErr("create_user", err)
	}

	user := UserRecord{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		Email:        email,
		Description:  description,
		CreatedAt:    e.now(),
	}
	if err := e.users.Create(ctx, user); err != nil {
		err = e.mapStoreErr("create_user", err)
		e.emitAudit(ctx, auditUserCreated, username, false, err, nil)
		return UserRecord{}, err
	}

	e.emitAudit(ctx, auditUserCreated, username, true, nil, map[string]string{"role": role})
	return user, nil
}

// DeleteUser removes an account. Its sessions stop authorizing on their
// next use.
func (e *Engine) DeleteUser(ctx context.Context, username string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if _, err := e.getUser(ctx, "delete_user", username); err != nil {
		return err
	}
	if err := e.users.Delete(ctx, username); err != nil {
		return e.mapStoreErr("delete_user", err)
	}

	e.emitAudit(ctx, auditUserDeleted, username, true, nil, nil)
	return nil
}

// ChangePassword replaces the password of username. Outstanding reset
// tokens for the account become invalid.
func (e *Engine) ChangePassword(ctx context.Context, username, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.checkPassword(newPassword); err != nil {
		return err
	}

	if _, err := e.getUser(ctx, "change_password", username); err != nil {
		return err
	}

	hash, err := e.passwordHash.Hash(username, newPassword)
	if err != nil {
		return e.mapStoreErr("change_password", err)
	}

	// Conditional on the hash just read; retried when it changes underneath.
	for attempt := 1; ; attempt++ {
		user, err := e.getUser(ctx, "change_password", username)
		if err != nil {
			return err
		}
		err = e.users.UpdateHash(ctx, username, user.PasswordHash, hash)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrConflict) && attempt < maxHashSwapAttempts {
			continue
		}
		return e.mapStoreErr("change_password", err)
	}

	e.emitAudit(ctx, auditPasswordChanged, username, true, nil, nil)
	return nil
}

// SetRole assigns an existing role to username.
func (e *Engine) SetRole(ctx context.Context, username, role string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if _, err := e.roles.LevelOf(ctx, role); err != nil {
		return e.mapStoreErr("set_role", err)
	}

	user, err := e.getUser(ctx, "set_role", username)
	if err != nil {
		return err
	}

	previous := user.Role
	if err := e.users.UpdateRole(ctx, username, role); err != nil {
		return e.mapStoreErr("set_role", err)
	}

	e.emitAudit(ctx, auditRoleChanged, username, true, nil, map[string]string{
		"from": previous,
		"to":   role,
	})
	return nil
}

// ListUsers returns every account in no particular order.
func (e *Engine) ListUsers(ctx context.Context) ([]UserRecord, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	users, err := e.users.List(ctx)
	if err != nil {
		return nil, e.mapStoreErr("list_users", err)
	}
	return users, nil
}

// CreateRole adds a role with the given level.
func (e *Engine) CreateRole(ctx context.Context, role string, level int) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.roles.Create(ctx, role, level); err != nil {
		return e.mapStoreErr("create_role", err)
	}
	e.emitAudit(ctx, auditRoleCreated, "", true, nil, map[string]string{"role": role})
	return nil
}

// DeleteRole removes a role. Users still assigned to it are denied any
// level-based requirement until reassigned.
func (e *Engine) DeleteRole(ctx context.Context, role string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.roles.Delete(ctx, role); err != nil {
		return e.mapStoreErr("delete_role", err)
	}
	e.emitAudit(ctx, auditRoleDeleted, "", true, nil, map[string]string{"role": role})
	return nil
}

// ListRoles returns every role and its level.
func (e *Engine) ListRoles(ctx context.Context) (map[string]int, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	roles, err := e.roles.List(ctx)
	if err != nil {
		return nil, e.mapStoreErr("list_roles", err)
	}
	return roles, nil
}

// SeedRoles writes levels into the role table, overwriting existing entries.
func (e *Engine) SeedRoles(ctx context.Context, levels map[string]int) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.roles.Seed(ctx, levels); err != nil {
		return e.mapStoreErr("seed_roles", err)
	}
	return nil
}

func (e *Engine) getUser(ctx context.Context, op, username string) (UserRecord, error) {
	user, err := e.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, e.mapStoreErr(op, err)
	}
	return user, nil
}
