package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PatternLength is the number of beads in a generated pass
const PatternLength = 4

// maxBeadValue is the largest number one rod of the junior counter can show
const maxBeadValue = 9

// Avatars a new profile can be given
var Avatars = []string{
	"owl", "fox", "panda", "turtle", "lion", "dolphin", "rabbit", "koala",
	"tiger", "penguin", "elephant", "giraffe", "bear", "monkey", "zebra", "hedgehog",
}

// GenerateBeadPattern returns a random pattern of PatternLength values in 0..9
func GenerateBeadPattern() ([]int, error) {
	pattern := make([]int, PatternLength)
	for i := range pattern {
		num, err := rand.Int(rand.Reader, big.NewInt(maxBeadValue+1))
		if err != nil {
			return nil, fmt.Errorf("failed to generate bead pattern: %w", err)
		}
		pattern[i] = int(num.Int64())
	}
	return pattern, nil
}

// RandomAvatar picks an avatar for a profile created without one
func RandomAvatar() (string, error) {
	return randomElement(Avatars)
}

// randomElement picks a random element from a string slice
func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}

	return slice[num.Int64()], nil
}
