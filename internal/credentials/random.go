package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// CodeAlphabet is the character set used for magic-link codes.
const CodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CodeLength is the length of magic-link codes.
const CodeLength = 12

// RandomString draws n characters from alphabet using crypto/rand.
// Each character is chosen with rand.Int, so the draw carries no modulo bias.
func RandomString(alphabet string, n int) (string, error) {
	if len(alphabet) == 0 || n <= 0 {
		return "", fmt.Errorf("invalid random string parameters")
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}

	return string(out), nil
}

// NewCode generates a candidate magic-link code.
func NewCode() (string, error) {
	return RandomString(CodeAlphabet, CodeLength)
}

// RandomIndex returns a uniform random index in [0, n).
func RandomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid index bound %d", n)
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return int(idx.Int64()), nil
}

// NewJTI generates a random token identifier.
func NewJTI() string {
	return uuid.NewString()
}
