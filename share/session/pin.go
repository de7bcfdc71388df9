package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	pinLength = 6
	pinMin    = 100000
	pinSpan   = 900000
)

// PINGenerator draws candidate PINs.
type PINGenerator func() (string, error)

var pinRange = big.NewInt(pinSpan)

// RandomPIN returns a uniformly random 6-digit PIN in [100000, 999999].
func RandomPIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinRange)
	if err != nil {
		return "", fmt.Errorf("failed to draw pin: %w", err)
	}
	return strconv.FormatInt(n.Int64()+pinMin, 10), nil
}

// ValidPIN reports whether pin is exactly six ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
