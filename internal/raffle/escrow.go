package raffle

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Escrow custodies ticket payments. The jackpot is always derived from the
// running total, never stored.
type Escrow struct {
	percentage     uint64
	total          uint64
	claimed        bool
	reclaimed      bool
	houseWithdrawn bool
}

func NewEscrow(jackpotPercentage uint64) *Escrow {
	return &Escrow{percentage: jackpotPercentage}
}

func (e *Escrow) Total() uint64 {
	return e.total
}

// JackpotAmount is floor(total * percentage / 100), computed in 128 bits.
func (e *Escrow) JackpotAmount() uint64 {
	hi, lo := bits.Mul64(e.total, e.percentage)
	quo, _ := bits.Div64(hi, lo, 100)
	return quo
}

func (e *Escrow) HouseShare() uint64 {
	return e.total - e.JackpotAmount()
}

func (e *Escrow) Claimed() bool {
	return e.claimed
}

func (e *Escrow) Reclaimed() bool {
	return e.reclaimed
}

func (e *Escrow) HouseWithdrawn() bool {
	return e.houseWithdrawn
}

func expectedPayment(price, count uint64) (uint64, bool) {
	hi, lo := bits.Mul64(price, count)
	return lo, hi == 0
}

func (e *Escrow) checkPayment(amount, expected uint64) error {
	if amount != expected {
		return errors.Wrapf(ErrIncorrectPayment, "paid %d, expected %d", amount, expected)
	}
	if _, carry := bits.Add64(e.total, amount, 0); carry != 0 {
		return errors.Wrap(ErrIncorrectPayment, "escrow total overflows")
	}
	return nil
}

func (e *Escrow) record(amount uint64) {
	e.total += amount
}

func (e *Escrow) checkSettle() error {
	if e.claimed {
		return errors.Wrap(ErrAlreadyClaimed, "jackpot already claimed")
	}
	if e.reclaimed {
		return errors.Wrap(ErrAlreadyClaimed, "jackpot already reclaimed")
	}
	return nil
}

func (e *Escrow) markClaimed() error {
	if err := e.checkSettle(); err != nil {
		return err
	}
	e.claimed = true
	return nil
}

func (e *Escrow) markReclaimed() error {
	if err := e.checkSettle(); err != nil {
		return err
	}
	e.reclaimed = true
	return nil
}

func (e *Escrow) markHouseWithdrawn() error {
	if e.houseWithdrawn {
		return errors.Wrap(ErrAlreadyClaimed, "house share already withdrawn")
	}
	e.houseWithdrawn = true
	return nil
}
