package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomIntn returns a uniform random int in [0, max) from crypto/rand.
func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}

// RandomString draws n characters uniformly from charset. Each character is
// selected independently, so the result carries n*log2(len(charset)) bits of
// entropy with no modulo bias.
func RandomString(n int, charset string) (string, error) {
	if len(charset) == 0 {
		return "", fmt.Errorf("charset must not be empty")
	}
	chars := []rune(charset)
	out := make([]rune, n)
	for i := range out {
		idx, err := RandomIntn(len(chars))
		if err != nil {
			return "", fmt.Errorf("generating random char index: %w", err)
		}
		out[i] = chars[idx]
	}
	return string(out), nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}
