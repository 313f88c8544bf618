package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argonAlgorithm = "argon2id"

// Bounds applied to parameters read back from stored hashes.
const (
	maxMemoryKiB   = 1 << 20 // 1 GiB
	maxIterations  = 64
	minSaltLength  = 8
	minKeyLength   = 16
	maxKeyLength   = 128
	maxParallelism = 64
)

// HashParams are the Argon2id cost parameters used for new hashes.
type HashParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams follows the OWASP Argon2id baseline.
var DefaultHashParams = HashParams{
	Memory:      64 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func (p HashParams) validate() error {
	switch {
	case p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxMemoryKiB:
		return fmt.Errorf("argon2 memory %d KiB out of range", p.Memory)
	case p.Iterations == 0 || p.Iterations > maxIterations:
		return fmt.Errorf("argon2 iterations %d out of range", p.Iterations)
	case p.Parallelism == 0 || p.Parallelism > maxParallelism:
		return fmt.Errorf("argon2 parallelism %d out of range", p.Parallelism)
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length %d too short", p.SaltLength)
	case p.KeyLength < minKeyLength || p.KeyLength > maxKeyLength:
		return fmt.Errorf("argon2 key length %d out of range", p.KeyLength)
	}
	return nil
}

// Hasher hashes and verifies passwords with Argon2id.
type Hasher struct {
	params HashParams
}

// NewHasher validates params and runs a hash/verify self-test.
func NewHasher(params HashParams) (*Hasher, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	h := &Hasher{params: params}
	encoded, err := h.Hash("self-test")
	if err != nil {
		return nil, fmt.Errorf("auth: hasher self-test: %w", err)
	}
	if !h.Verify("self-test", encoded) {
		return nil, errors.New("auth: hasher self-test failed")
	}
	return h, nil
}

// Hash returns a PHC-formatted Argon2id hash with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonAlgorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Malformed or foreign
// hashes yield false.
func (h *Hasher) Verify(password, encoded string) bool {
	parsed, err := decodePHC(encoded)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Iterations, parsed.params.Memory, parsed.params.Parallelism, parsed.params.KeyLength)
	return subtle.ConstantTimeCompare(candidate, parsed.key) == 1
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's current ones (or cannot be parsed at all).
func (h *Hasher) NeedsRehash(encoded string) bool {
	parsed, err := decodePHC(encoded)
	if err != nil {
		return true
	}
	p := parsed.params
	return p.Memory < h.params.Memory ||
		p.Iterations < h.params.Iterations ||
		p.Parallelism < h.params.Parallelism ||
		p.KeyLength < h.params.KeyLength
}

type phcHash struct {
	params HashParams
	salt   []byte
	key    []byte
}

func decodePHC(encoded string) (phcHash, error) {
	var out phcHash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return out, errors.New("invalid PHC hash format")
	}
	if parts[1] != argonAlgorithm {
		return out, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return out, fmt.Errorf("parse version: %w", err)
	}
	if version != argon2.Version {
		return out, fmt.Errorf("unsupported argon2 version %d", version)
	}
	var p HashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return out, fmt.Errorf("parse parameters: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return out, fmt.Errorf("decode salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return out, fmt.Errorf("decode key: %w", err)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	if err := p.validate(); err != nil {
		return out, err
	}
	out.params = p
	out.salt = salt
	out.key = key
	return out, nil
}
