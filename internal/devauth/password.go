package devauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB uint32 = 8 * 1024
	minSaltLen  uint32 = 16
	minKeyLen   uint32 = 16
	algorithmID        = "argon2id"
)

var ErrInvalidHash = errors.New("invalid password hash")

// HashConfig sets the argon2id cost parameters for new hashes. Verification
// always uses the parameters encoded in the stored hash.
type HashConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultHashConfig() HashConfig {
	return HashConfig{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type Hasher struct {
	config HashConfig
}

func NewHasher(cfg HashConfig) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("hash memory must be >= 8192 KiB")
	case cfg.Time < 1:
		return nil, errors.New("hash time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("hash parallelism must be >= 1")
	case cfg.SaltLength < minSaltLen:
		return nil, errors.New("hash salt length must be >= 16")
	case cfg.KeyLength < minKeyLen:
		return nil, errors.New("hash key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns a PHC string: $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded.
func Verify(password, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: format", ErrInvalidHash)
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: version", ErrInvalidHash)
	}

	var p phc
	seen := 0
	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: parameters", ErrInvalidHash)
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return nil, fmt.Errorf("%w: memory", ErrInvalidHash)
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: time", ErrInvalidHash)
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: parallelism", ErrInvalidHash)
			}
			p.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: parameter %q", ErrInvalidHash, k)
		}
		seen++
	}
	if seen != 3 {
		return nil, fmt.Errorf("%w: parameters", ErrInvalidHash)
	}

	var err error
	if p.salt, err = decodeB64(parts[4]); err != nil || len(p.salt) < int(minSaltLen) {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	if p.key, err = decodeB64(parts[5]); err != nil || len(p.key) < int(minKeyLen) {
		return nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	return &p, nil
}

// decodeB64 accepts padded and unpadded standard base64; both appear in
// hashes produced by other tools.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
