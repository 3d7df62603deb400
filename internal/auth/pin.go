package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PINLength is the number of digits on the parent PIN pad.
const PINLength = 4

var ErrInvalidPIN = errors.New("PIN must be exactly 4 digits")

// ValidPIN reports whether pin is exactly PINLength ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// HashPIN validates and bcrypt-hashes a PIN for storage.
func HashPIN(pin string) (string, error) {
	if !ValidPIN(pin) {
		return "", ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePIN reports whether pin matches the stored hash.
func ComparePIN(hash, pin string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
