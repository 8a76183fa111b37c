package raffle

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// Seed is opaque entropy supplied by a SeedSource. Its quality is not checked.
type Seed [32]byte

func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

func ParseSeed(s string) (Seed, error) {
	var seed Seed
	raw, err := hex.DecodeString(s)
	if err != nil {
		return seed, errors.Wrap(err, "decode seed")
	}
	if len(raw) != len(seed) {
		return seed, errors.Errorf("seed must be %d bytes, got %d", len(seed), len(raw))
	}
	copy(seed[:], raw)
	return seed, nil
}

// SeedRequest describes the closing the seed is requested for.
type SeedRequest struct {
	EndTime   time.Time
	TotalSold uint64
}

type SeedSource interface {
	Seed(request SeedRequest) (Seed, error)
}

// SeedSourceFunc adapts a plain function to SeedSource.
type SeedSourceFunc func(request SeedRequest) (Seed, error)

func (f SeedSourceFunc) Seed(request SeedRequest) (Seed, error) {
	return f(request)
}

// SelectWinningTicket maps seed into [1, totalSold]: the seed is read as a
// big-endian unsigned integer and reduced modulo totalSold.
func SelectWinningTicket(totalSold uint64, seed Seed) (TicketID, error) {
	if totalSold == 0 {
		return 0, ErrNoTicketsSold
	}
	n := new(big.Int).SetBytes(seed[:])
	n.Mod(n, new(big.Int).SetUint64(totalSold))
	return TicketID(n.Uint64() + 1), nil
}

// SelectWinner picks the winning ticket among everything sold so far and
// resolves its owner.
func (l *Ledger) SelectWinner(seed Seed) (TicketID, Account, error) {
	id, err := SelectWinningTicket(l.TotalSold(), seed)
	if err != nil {
		return 0, Account{}, err
	}
	owner, _ := l.OwnerOf(id)
	return id, owner, nil
}

func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Seed) UnmarshalText(text []byte) error {
	parsed, err := ParseSeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
