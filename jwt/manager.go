package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AudienceSession marks tokens that carry a session id in a cookie.
	AudienceSession = "session"
	// AudienceReset marks password reset tokens.
	AudienceReset = "password-reset"

	minKeyBytes = 32
)

// Config configures HS256 signing.
//
// When VerifyKeys is set, parsing selects the key by the token's kid header,
// which lets an old key keep verifying while KeyID/SigningKey move on.
type Config struct {
	SigningKey []byte
	Issuer     string
	Leeway     time.Duration
	KeyID      string
	VerifyKeys map[string][]byte
}

// Manager signs and verifies the HS256 tokens goGate hands to clients.
type Manager struct {
	config Config
}

// SessionClaims carries a session id inside a cookie value.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// ResetClaims authorizes one password reset. Subject is the username and
// Fingerprint identifies the password hash the token was issued against.
type ResetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager rejects keys shorter than 256 bits and leeway above two minutes.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) < minKeyBytes {
		return nil, errors.New("hs256 key must be at least 256 bits")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < minKeyBytes {
			return nil, fmt.Errorf("verify key for kid %q must be at least 256 bits", kid)
		}
	}
	if len(cfg.VerifyKeys) > 0 {
		if cfg.KeyID == "" {
			return nil, errors.New("KeyID is required with VerifyKeys")
		}
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	cfg.SigningKey = append([]byte(nil), cfg.SigningKey...)
	return &Manager{config: cfg}, nil
}

// SignSession returns a token binding sid, issued at now. Session tokens
// carry no expiry; session lifetime is enforced server-side.
func (m *Manager) SignSession(sid string, now time.Time) (string, error) {
	if sid == "" {
		return "", errors.New("empty session id")
	}
	claims := SessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   m.config.Issuer,
			Audience: jwt.ClaimStrings{AudienceSession},
		},
	}
	return m.sign(claims)
}

// ParseSession verifies tokenStr and returns its claims.
func (m *Manager) ParseSession(tokenStr string, now time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(tokenStr, claims, AudienceSession, now, false); err != nil {
		return nil, err
	}
	if claims.SID == "" {
		return nil, errors.New("missing sid claim")
	}
	return claims, nil
}

// SignReset describes the signreset operation and its observable behavior.
func (m *Manager) SignReset(username, fingerprint string, expiresAt, now time.Time) (string, error) {
	claims := ResetClaims{
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{AudienceReset},
		},
	}
	return m.sign(claims)
}

// ParseReset verifies tokenStr against now. An expiry claim is required.
func (m *Manager) ParseReset(tokenStr string, now time.Time) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := m.parse(tokenStr, claims, AudienceReset, now, true); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Fingerprint == "" {
		return nil, errors.New("incomplete reset claims")
	}
	return claims, nil
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.config.SigningKey)
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, audience string, now time.Time, requireExp bool) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if requireExp {
		options = append(options, jwt.WithExpirationRequired())
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(m.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := m.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return key, nil
		}

		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return m.config.SigningKey, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
