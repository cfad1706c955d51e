package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost factor the rest of the stack expects.
const bcryptCost = 10

// MinPasswordLength is the registration floor.
const MinPasswordLength = 6

// HashPassword produces a salted one-way hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
