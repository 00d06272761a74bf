package verification

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the one-time code hash.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the OWASP argon2id minimum (19 MiB, 2 passes).
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      19 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher salts and hashes one-time codes with argon2id. The optional pepper is
// mixed into every hash so a leaked challenge store alone cannot be brute forced.
type Hasher struct {
	params Argon2Params
	pepper []byte
	// dummySalt is hashed against when no challenge exists so that an unknown
	// consent ID costs the same as a wrong code.
	dummySalt []byte
	dummyHash []byte
}

// NewHasher constructs a Hasher. A zero Params value selects the defaults.
func NewHasher(params Argon2Params, pepper string) (*Hasher, error) {
	if params == (Argon2Params{}) {
		params = DefaultArgon2Params()
	}
	h := &Hasher{params: params, pepper: []byte(pepper)}
	salt, err := h.newSalt()
	if err != nil {
		return nil, err
	}
	h.dummySalt = salt
	h.dummyHash = h.derive("000000", salt)
	return h, nil
}

// Hash returns a fresh salt and the hash of code under it.
func (h *Hasher) Hash(code string) (hash, salt []byte, err error) {
	salt, err = h.newSalt()
	if err != nil {
		return nil, nil, err
	}
	return h.derive(code, salt), salt, nil
}

// Verify compares code against hash in constant time.
func (h *Hasher) Verify(code string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		h.Burn(code)
		return false
	}
	return subtle.ConstantTimeCompare(h.derive(code, salt), hash) == 1
}

// Burn performs the same work as Verify and always fails.
func (h *Hasher) Burn(code string) {
	_ = subtle.ConstantTimeCompare(h.derive(code, h.dummySalt), h.dummyHash)
}

func (h *Hasher) derive(code string, salt []byte) []byte {
	input := make([]byte, 0, len(code)+len(h.pepper))
	input = append(input, code...)
	input = append(input, h.pepper...)
	return argon2.IDKey(input, salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
}

func (h *Hasher) newSalt() ([]byte, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// GenerateCode returns a uniformly random decimal code of the given length.
func GenerateCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
