package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	digits       = "0123456789"
	alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// CodeGenerator produces a code of the given length and type.
type CodeGenerator func(length int, t CodeType) (string, error)

// GenerateCode draws length characters uniformly from the type's alphabet
// using crypto/rand.
func GenerateCode(length int, t CodeType) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	alphabet := digits
	switch t {
	case Numeric:
	case Alphanumeric:
		alphabet = alphanumeric
	default:
		return "", fmt.Errorf("invalid code type %q", t)
	}

	n := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
