package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	minGeneratedPassword = 16
	passwordAlphabet     = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GeneratePassword returns a random password for bootstrap accounts. Lengths
// below 16 are raised to 16.
func GeneratePassword(length int) (string, error) {
	if length < minGeneratedPassword {
		length = minGeneratedPassword
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
