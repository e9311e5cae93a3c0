package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// DefaultAlphabet is used by GenerateSecureString when alphabet is empty.
const DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrInvalidAlphabet is returned for alphabets longer than 256 symbols.
var ErrInvalidAlphabet = errors.New("alphabet must contain 1 to 256 symbols")

// GenerateRandByteArray returns size cryptographically random bytes.
// It panics if the system random source fails, which is not recoverable.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the result is 2*size characters.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateToken returns length random bytes hex encoded.
func GenerateToken(length int) (string, error) {
	return MakeRandHexString(length)
}

// GenerateSecureString returns length symbols drawn uniformly from alphabet.
// Bytes that would bias the distribution are rejected and redrawn.
func GenerateSecureString(length int, alphabet string) (string, error) {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	symbols := []rune(alphabet)
	n := len(symbols)
	if n > 256 {
		return "", ErrInvalidAlphabet
	}
	if length <= 0 {
		return "", nil
	}

	// largest multiple of n that fits in a byte
	limit := 256 - 256%n

	out := make([]rune, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, symbols[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Use it for passphrases and derived keys once they are no longer needed.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
