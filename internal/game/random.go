package game

import (
	"crypto/rand"
	"math/big"
)

// Source produces random integers.
type Source interface {
	// Intn returns a value in [0, n). n must be > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn returns a uniformly distributed int in [0, n).
//
// Precondition: n > 0. Panics if n <= 0 or crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("game: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("game: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

func pick[T any](src Source, items []T) T {
	return items[src.Intn(len(items))]
}
