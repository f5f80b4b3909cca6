package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of digits in a generated code.
const Length = 6

var space = big.NewInt(1_000_000)

// Generator produces numeric one-time passcodes.
type Generator interface {
	Generate() (string, error)
}

// Random draws codes uniformly from [000000, 999999] using crypto/rand.
type Random struct{}

func NewRandom() Random { return Random{} }

func (Random) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", Length, n.Int64()), nil
}
