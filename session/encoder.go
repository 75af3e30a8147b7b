package session

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	sessionFormatVersion = 1

	lastAccessOffset = 9
	headerSize       = 1 + 8 + 8 + 1
	maxUsernameBytes = 255
)

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

func Encode(s *Session) ([]byte, error) {
	if len(s.Username) > maxUsernameBytes {
		return nil, errors.New("username too long")
	}

	buf := make([]byte, headerSize, headerSize+len(s.Username))
	buf[0] = sessionFormatVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(s.CreatedAt))
	binary.BigEndian.PutUint64(buf[lastAccessOffset:lastAccessOffset+8], uint64(s.LastAccess))
	buf[17] = byte(len(s.Username))
	buf = append(buf, s.Username...)

	return buf, nil
}

// Decode parses a record produced by Encode. The session id is not part of
// the record and is left empty.
func Decode(data []byte) (*Session, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short record", ErrCorrupt)
	}
	if data[0] != sessionFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[0])
	}

	userLen := int(data[17])
	if len(data) != headerSize+userLen {
		return nil, fmt.Errorf("%w: length mismatch", ErrCorrupt)
	}

	return &Session{
		CreatedAt:  int64(binary.BigEndian.Uint64(data[1:9])),
		LastAccess: int64(binary.BigEndian.Uint64(data[lastAccessOffset : lastAccessOffset+8])),
		Username:   string(data[headerSize:]),
	}, nil
}

func encodeTimestamp(ts int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ts))
	return b[:]
}
