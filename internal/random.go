package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// SessionID is the raw form of a session identifier.
type SessionID [32]byte

const registrationTokenSize = 24

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, cookie-safe
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID rejects anything that NewSessionID could not have produced,
// so malformed ids never reach the store.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	if len(sessionID) != base64.RawURLEncoding.EncodedLen(len(sid)) {
		return sid, errors.New("invalid session id size")
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewRegistrationToken returns the token handed to the registrant.
func NewRegistrationToken() (string, error) {
	var raw [registrationTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the storage key for a bearer token. Only the hash is
// persisted, so a store dump cannot be replayed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
