// Package cookie carries session ids to browsers in signed cookies.
//
// The cookie value is an HS256 token holding the session id, so a client
// cannot forge or alter the id it presents. Validity of the session itself
// is still decided by the Engine.
package cookie

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goGate/jwt"
)

// DefaultName is the cookie name used when Options.Name is empty.
const DefaultName = "gogate_session"

// ErrInvalidCookie covers missing cookies and any signature, algorithm or
// format problem with the value.
var ErrInvalidCookie = errors.New("invalid session cookie")

// Options control cookie attributes.
type Options struct {
	Name   string
	Path   string
	Domain string
	Secure bool
}

func (o Options) normalize() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	return o
}

// Codec encodes session ids into cookie values and back.
type Codec struct {
	tokens *jwt.Manager
	opts   Options
	now    func() time.Time
}

// NewCodec returns a Codec signing with tokens.
func NewCodec(tokens *jwt.Manager, opts Options) (*Codec, error) {
	if tokens == nil {
		return nil, errors.New("cookie: token manager required")
	}
	return &Codec{
		tokens: tokens,
		opts:   opts.normalize(),
		now:    time.Now,
	}, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string {
	return c.opts.Name
}

// Encode returns the signed cookie value for sessionID.
func (c *Codec) Encode(sessionID string) (string, error) {
	return c.tokens.SignSession(sessionID, c.now())
}

// Decode verifies value and returns the session id inside it.
func (c *Codec) Decode(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidCookie
	}
	claims, err := c.tokens.ParseSession(value, c.now())
	if err != nil {
		return "", ErrInvalidCookie
	}
	return claims.SID, nil
}

// Read extracts and decodes the session cookie from r.
func (c *Codec) Read(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.opts.Name)
	if err != nil {
		return "", ErrInvalidCookie
	}
	return c.Decode(ck.Value)
}

// Set writes value as the session cookie. A maxAge of zero makes it a
// browser-session cookie.
func (c *Codec) Set(w http.ResponseWriter, value string, maxAge time.Duration) {
	ck := &http.Cookie{
		Name:     c.opts.Name,
		Value:    value,
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		ck.MaxAge = int(maxAge / time.Second)
		ck.Expires = c.now().Add(maxAge)
	}
	http.SetCookie(w, ck)
}

// Clear expires the session cookie on the client.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.opts.Name,
		Value:    "",
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
