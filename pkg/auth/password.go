package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12 // fixed safe default, tune only with a migration plan
	MinPasswordLen = 12
	MaxPasswordLen = 64

	oneTimeCodeLength = 6
)

// PasswordValidationError holds validation error details
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return fmt.Sprintf("invalid password: %s", e.Errors[0])
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword verifies password against a stored bcrypt hash. bcrypt
// comparison is constant-time with respect to the stored hash.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the password policy: length between 12 and 64
// characters, no other rule.
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	if len(password) < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}

// GenerateOneTimeCode returns a 6-digit code for SMS delivery, drawn from
// crypto/rand.
func GenerateOneTimeCode() (string, error) {
	code := make([]byte, 0, oneTimeCodeLength)
	for i := 0; i < oneTimeCodeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate one-time code: %w", err)
		}
		code = append(code, byte('0'+n.Int64()))
	}
	return string(code), nil
}
