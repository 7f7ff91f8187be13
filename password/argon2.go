package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm      = "argon2id"
	minMemoryKB    = 8 * 1024
	minSaltLength  = 16
	minKeyLength   = 16
	MinPassword    = 10
	dummyPlaintext = "authcore-dummy-password"
)

var (
	// ErrTooShort is returned by Hash for passwords under MinPassword bytes.
	ErrTooShort = fmt.Errorf("password must be at least %d bytes", MinPassword)
	// ErrInvalidHash indicates the stored value is not a parseable argon2id PHC string.
	ErrInvalidHash = errors.New("invalid argon2id hash")
	// ErrWeakParams is returned by NewHasher when a cost parameter is below the floor.
	ErrWeakParams = errors.New("argon2id parameters below minimum")
)

// Params are the argon2id cost parameters. Memory is in KiB.
type Params struct {
	Memory      uint32 `koanf:"memory_kb" env:"MEMORY_KB"`
	Time        uint32 `koanf:"time" env:"TIME"`
	Parallelism uint8  `koanf:"parallelism" env:"PARALLELISM"`
	SaltLength  uint32 `koanf:"salt_length" env:"SALT_LENGTH"`
	KeyLength   uint32 `koanf:"key_length" env:"KEY_LENGTH"`
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Params) validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("%w: memory %d KiB < %d", ErrWeakParams, p.Memory, minMemoryKB)
	case p.Time < 1:
		return fmt.Errorf("%w: time must be >= 1", ErrWeakParams)
	case p.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be >= 1", ErrWeakParams)
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("%w: salt length %d < %d", ErrWeakParams, p.SaltLength, minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length %d < %d", ErrWeakParams, p.KeyLength, minKeyLength)
	}
	return nil
}

// Hasher hashes and verifies argon2id passwords. Safe for concurrent use.
type Hasher struct {
	params Params

	dummyOnce sync.Once
	dummy     string
}

// NewHasher validates p and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash returns the PHC encoding of password under fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinPassword {
		return "", ErrTooShort
	}
	return h.hash(password)
}

func (h *Hasher) hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return encode(phc{params: h.params, salt: salt, key: key}), nil
}

// Verify reports whether password matches encoded. A malformed hash is an
// error, a mismatch is not.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, err := decode(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), stored.salt, stored.params.Time, stored.params.Memory,
		stored.params.Parallelism, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the Hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := decode(encoded)
	if err != nil {
		return false, err
	}
	p := stored.params
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Parallelism < h.params.Parallelism ||
		uint32(len(stored.key)) != h.params.KeyLength, nil
}

// DummyHash returns a valid hash of a fixed throwaway password, computed once.
// Verifying against it costs the same as verifying a real account.
func (h *Hasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		encoded, err := h.hash(dummyPlaintext)
		if err != nil {
			panic(fmt.Sprintf("password: build dummy hash: %v", err))
		}
		h.dummy = encoded
	})
	return h.dummy
}

type phc struct {
	params Params
	salt   []byte
	key    []byte
}

func encode(v phc) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		v.params.Memory, v.params.Time, v.params.Parallelism,
		b64.EncodeToString(v.salt), b64.EncodeToString(v.key))
}

func decode(encoded string) (phc, error) {
	var out phc

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return out, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return out, fmt.Errorf("%w: version %q", ErrInvalidHash, parts[2])
	}

	if err := decodeParams(parts[3], &out.params); err != nil {
		return out, err
	}

	var err error
	if out.salt, err = decodeSegment(parts[4]); err != nil || len(out.salt) < minSaltLength {
		return out, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	if out.key, err = decodeSegment(parts[5]); err != nil || len(out.key) == 0 {
		return out, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	out.params.SaltLength = uint32(len(out.salt))
	out.params.KeyLength = uint32(len(out.key))
	return out, nil
}

// decodeSegment accepts both padded and unpadded standard base64, since
// hashes produced by other argon2 tooling vary.
func decodeSegment(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func decodeParams(s string, p *Params) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: params %q", ErrInvalidHash, s)
		}
		seen[name] = true

		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || v == 0 {
			return fmt.Errorf("%w: param %s", ErrInvalidHash, name)
		}

		switch name {
		case "m":
			if v < minMemoryKB {
				return fmt.Errorf("%w: memory below floor", ErrInvalidHash)
			}
			p.Memory = uint32(v)
		case "t":
			p.Time = uint32(v)
		case "p":
			p.Parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown param %s", ErrInvalidHash, name)
		}
	}
	if len(seen) != 3 {
		return fmt.Errorf("%w: missing params", ErrInvalidHash)
	}
	return nil
}
