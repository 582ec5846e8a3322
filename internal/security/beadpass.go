package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultResetPattern is the pattern a profile gets after an operator reset
var DefaultResetPattern = []int{1, 2, 3}

// ErrInvalidPattern is returned when a pattern cannot be parsed
var ErrInvalidPattern = errors.New("invalid bead pattern")

// FormatPattern joins a pattern as the hash input, e.g. "1-2-3"
func FormatPattern(pattern []int) string {
	parts := make([]string, len(pattern))
	for i, n := range pattern {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "-")
}

// ParsePattern reads "1-2-3" (commas and spaces are also accepted)
func ParsePattern(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil, ErrInvalidPattern
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, f)
		}
		out[i] = n
	}
	return out, nil
}

// HashBeadPattern returns the lowercase hex SHA-256 of the joined pattern.
// This gates which profile a child opens; it is not a credential.
func HashBeadPattern(pattern []int) string {
	sum := sha256.Sum256([]byte(FormatPattern(pattern)))
	return hex.EncodeToString(sum[:])
}

// ValidateBeadPass reports whether pattern hashes to digest
func ValidateBeadPass(pattern []int, digest string) bool {
	got := HashBeadPattern(pattern)
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(digest))) == 1
}
