package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	upper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lower   = "abcdefghijkmnopqrstuvwxyz"
	digits  = "23456789"
	symbols = "!#$%*+-=?@^_"

	// MinPasswordLength is the shortest password SQL Server accepts under CHECK_POLICY.
	MinPasswordLength = 8
)

// GeneratePassword returns a random password of the given length containing
// at least one character of every class. Quote characters are never used,
// so the result can be embedded in T-SQL literals and connection strings
// without escaping.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		return "", fmt.Errorf("password length %d is below minimum %d", length, MinPasswordLength)
	}

	classes := []string{upper, lower, digits, symbols}
	all := upper + lower + digits + symbols

	out := make([]byte, length)
	for i, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	for i := len(classes); i < length; i++ {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	// Fisher-Yates so the guaranteed characters are not always in front.
	for i := length - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("failed to shuffle password: %w", err)
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}

	return string(out), nil
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("failed to read random data: %w", err)
	}
	return set[n.Int64()], nil
}
