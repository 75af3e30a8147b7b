package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMaxPasswordBytes bounds the work a single request can cause.
	DefaultMaxPasswordBytes = 1024

	// maxCostFactor caps the memory, time and key length a stored hash may
	// demand at this multiple of the configured values.
	maxCostFactor = 4
)

// ErrPasswordTooLong is returned by Hash when the password exceeds
// Config.MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password exceeds maximum length")

// Config holds the Argon2id cost parameters used for new hashes.
//
// Stored hashes carry their own parameters, so changing Config only affects
// hashes produced afterwards (see NeedsUpgrade).
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes rejects longer passwords. Zero means DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies account passwords.
//
// The derived key is bound to the username, so a hash copied onto another
// account does not verify there. Argon2 is safe for concurrent use.
type Argon2 struct {
	config Config
	dummy  *parsedPHC
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	a := &Argon2{config: cfg}

	encoded, err := a.Hash("", "")
	if err != nil {
		return nil, err
	}
	if a.dummy, err = parsePHC(encoded); err != nil {
		return nil, err
	}

	return a, nil
}

// Hash returns a PHC-formatted Argon2id hash of password for username.
// Password bytes are used exactly as provided (no Unicode normalization).
func (a *Argon2) Hash(username, password string) (string, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		keyMaterial(username, password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash for username.
//
// Any malformed or unsupported hash yields false after the same work as a
// DummyVerify. Hashes whose cost parameters exceed maxCostFactor times the
// configured ones count as malformed. The comparison of derived keys is
// constant time.
func (a *Argon2) Verify(username, password, encodedHash string) bool {
	if len(password) > a.config.MaxPasswordBytes {
		return false
	}

	parsed, err := parsePHC(encodedHash)
	if err == nil {
		err = a.checkCost(parsed)
	}
	if err != nil {
		_ = verifyParsed("", password, a.dummy)
		return false
	}

	return verifyParsed(username, password, parsed)
}

// DummyVerify performs one verification against an internal hash and
// discards the result. Callers use it when no stored hash exists so that
// unknown accounts cost the same as known ones.
func (a *Argon2) DummyVerify(password string) {
	_ = verifyParsed("", password, a.dummy)
}

// deriveKey is replaced in tests to observe verification work.
var deriveKey = argon2.IDKey

func verifyParsed(username, password string, parsed *parsedPHC) bool {
	computed := deriveKey(
		keyMaterial(username, password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1
}

func (a *Argon2) checkCost(parsed *parsedPHC) error {
	switch {
	case uint64(parsed.memory) > maxCostFactor*uint64(a.config.Memory):
		return errors.New("memory parameter exceeds limit")
	case uint64(parsed.time) > maxCostFactor*uint64(a.config.Time):
		return errors.New("time parameter exceeds limit")
	case uint64(parsed.keyLength) > maxCostFactor*uint64(a.config.KeyLength):
		return errors.New("hash length exceeds limit")
	}
	return nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current Config. A malformed hash always needs one.
func (a *Argon2) NeedsUpgrade(encodedHash string) bool {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return true
	}

	return a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != parsed.keyLength
}

// keyMaterial prefixes the username with its length so that distinct
// (username, password) pairs never concatenate to the same input.
func keyMaterial(username, password string) []byte {
	buf := make([]byte, 4, 4+len(username)+len(password))
	binary.BigEndian.PutUint32(buf, uint32(len(username)))
	buf = append(buf, username...)
	return append(buf, password...)
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return nil, errors.New("missing argon2 version")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(versionPart, "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(hash) < int(minKeyLength) {
		return nil, errors.New("invalid hash length")
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var (
		memorySet, timeSet, parallelismSet bool
		params                             parsedParams
	)

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.New("invalid parameter entry")
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			params.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			params.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
			parallelismSet = true
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return nil, errors.New("missing parameters")
	}

	return &params, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxPasswordBytes < 0 {
		return errors.New("password max bytes must be >= 0")
	}

	return nil
}
