// Package randomness provides seed sources for the raffle draw.
package randomness

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"raffle/internal/raffle"
)

// Beacon derives the seed as keccak256(beacon || endTime || totalSold), the
// way a contract would mix a block hash with its own state. The same inputs
// always give the same seed, so a draw can be re-checked from the journal.
type Beacon struct {
	value []byte
}

func NewBeacon(value []byte) (*Beacon, error) {
	if len(value) == 0 {
		return nil, errors.New("randomness: empty beacon value")
	}
	v := make([]byte, len(value))
	copy(v, value)
	return &Beacon{value: v}, nil
}

func (b *Beacon) Seed(request raffle.SeedRequest) (raffle.Seed, error) {
	var seed raffle.Seed
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(request.EndTime.Unix()))
	binary.BigEndian.PutUint64(buf[8:], request.TotalSold)

	h := sha3.NewLegacyKeccak256()
	h.Write(b.value)
	h.Write(buf[:])
	copy(seed[:], h.Sum(nil))
	return seed, nil
}

// Crypto reads the seed from the operating system's CSPRNG.
type Crypto struct{}

func (Crypto) Seed(raffle.SeedRequest) (raffle.Seed, error) {
	var seed raffle.Seed
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, errors.Wrap(err, "randomness: read crypto/rand")
	}
	return seed, nil
}

// Fixed always returns the same seed.
type Fixed raffle.Seed

func (f Fixed) Seed(raffle.SeedRequest) (raffle.Seed, error) {
	return raffle.Seed(f), nil
}

// New builds the source named by kind: "beacon" needs a value, "crypto" ignores it.
func New(kind string, beacon []byte) (raffle.SeedSource, error) {
	switch kind {
	case "beacon":
		return NewBeacon(beacon)
	case "crypto", "":
		return Crypto{}, nil
	default:
		return nil, errors.Errorf("randomness: unknown source %q", kind)
	}
}
