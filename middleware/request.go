package middleware

import (
	"net"
	"net/http"

	"github.com/google/uuid"

	goGate "github.com/MrEthical07/goGate"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestContext attaches the client IP and a request id to the request
// context. An incoming X-Request-ID is reused when it is short enough;
// otherwise a random UUID is generated. Forwarding headers are ignored.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := goGate.WithRequestID(r.Context(), id)
		ctx = goGate.WithClientIP(ctx, clientIP(r.RemoteAddr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
