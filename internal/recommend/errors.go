package recommend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned for malformed user input.
var ErrInvalidInput = errors.New("invalid input")

// MaxAge bounds accepted user ages.
const MaxAge = 150

// ParseAge parses a user-supplied age. Unlike catalog ages, a bad user age is
// an error rather than a silent default.
func ParseAge(raw string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: age %q is not a whole number", ErrInvalidInput, raw)
	}
	return validateAge(age)
}

func validateAge(age int) (int, error) {
	if age < 0 || age > MaxAge {
		return 0, fmt.Errorf("%w: age %d out of range 0-%d", ErrInvalidInput, age, MaxAge)
	}
	return age, nil
}

// NormalizeGender lowercases and trims a user-supplied gender.
func NormalizeGender(raw string) (string, error) {
	g := strings.ToLower(strings.TrimSpace(raw))
	if g == "" {
		return "", fmt.Errorf("%w: gender is required", ErrInvalidInput)
	}
	return g, nil
}
