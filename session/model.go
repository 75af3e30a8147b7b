package session

import "time"

// Session is the server-side record for one login.
//
// Timestamps are Unix nanoseconds. LastAccess never moves backwards.
type Session struct {
	SessionID  string
	Username   string
	CreatedAt  int64
	LastAccess int64
}

// Expired reports whether the session has outlived either timeout at now.
func (s *Session) Expired(now time.Time, idle, absolute time.Duration) bool {
	t := now.UnixNano()
	return t-s.LastAccess > int64(idle) || t-s.CreatedAt > int64(absolute)
}

// remaining returns how long the session could still live if untouched.
func (s *Session) remaining(now time.Time, idle, absolute time.Duration) time.Duration {
	t := now.UnixNano()
	left := int64(idle) - elapsed(t, s.LastAccess)
	if abs := int64(absolute) - elapsed(t, s.CreatedAt); abs < left {
		left = abs
	}
	if left < 0 {
		return 0
	}
	return time.Duration(left)
}

// elapsed is never negative, so a timestamp ahead of now cannot push the
// remaining lifetime past the timeout itself.
func elapsed(now, since int64) int64 {
	if d := now - since; d > 0 {
		return d
	}
	return 0
}
