package usecase

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	joinCodeLength   = 6
)

// generateJoinCode returns a random code drawn uniformly from joinCodeAlphabet.
func generateJoinCode() (string, error) {
	code := make([]byte, joinCodeLength)
	limit := big.NewInt(int64(len(joinCodeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate join code: %w", err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}
