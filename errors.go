package goGate

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for every failure shape and
	// by RequestPasswordReset when the username and email do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is an exported constant or variable used by the authentication engine.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidUsername rejects empty usernames and names over 255 bytes.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUnknownRole is returned when a required or assigned role has no level.
	ErrUnknownRole = errors.New("unknown role")
	// ErrRoleExists is an exported constant or variable used by the authentication engine.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleLevelTooHigh rejects self-service registration into privileged roles.
	ErrRoleLevelTooHigh = errors.New("role level exceeds registration limit")
	// ErrRegistrationExpired is an exported constant or variable used by the authentication engine.
	ErrRegistrationExpired = errors.New("registration expired")
	// ErrRegistrationNotFound is an exported constant or variable used by the authentication engine.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrRegistrationDisabled is an exported constant or variable used by the authentication engine.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrStoreUnavailable wraps every backend failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUserExists is an exported constant or variable used by the authentication engine.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordResetDisabled is an exported constant or variable used by the authentication engine.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrResetTokenInvalid covers bad signatures, expiry and tokens already used.
	ErrResetTokenInvalid = errors.New("invalid password reset token")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// errRateLimited never leaves the Engine. Login reports it as
	// ErrInvalidCredentials.
	errRateLimited = errors.New("login rate limited")
)
