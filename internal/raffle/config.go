package raffle

import (
	"math"
	"math/bits"
	"time"

	"github.com/pkg/errors"
)

// Config holds the creation-time raffle parameters. It never changes after
// the raffle is created.
type Config struct {
	TicketPrice       uint64  `json:"ticketPrice"`
	MaxTicketsPerTx   uint64  `json:"maxTicketsPerTx"`
	JackpotPercentage uint64  `json:"jackpotPercentage"`
	RaffleDuration    uint64  `json:"raffleDuration"` // seconds
	MaxTickets        uint64  `json:"maxTickets"`
	Organizer         Account `json:"organizer"`
}

const maxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))

func (c Config) Validate() error {
	if c.TicketPrice == 0 {
		return errors.Wrap(ErrInvalidConfig, "ticket price must be positive")
	}
	if c.MaxTicketsPerTx == 0 {
		return errors.Wrap(ErrInvalidConfig, "max tickets per transaction must be positive")
	}
	if c.MaxTickets == 0 {
		return errors.Wrap(ErrInvalidConfig, "max tickets must be positive")
	}
	if c.JackpotPercentage > 100 {
		return errors.Wrapf(ErrInvalidConfig, "jackpot percentage %d is above 100", c.JackpotPercentage)
	}
	if c.RaffleDuration == 0 || c.RaffleDuration > maxDurationSeconds {
		return errors.Wrapf(ErrInvalidConfig, "raffle duration %ds is out of range", c.RaffleDuration)
	}
	if hi, _ := bits.Mul64(c.TicketPrice, c.MaxTickets); hi != 0 {
		return errors.Wrap(ErrInvalidConfig, "ticket price times max tickets overflows")
	}
	if c.Organizer.IsZero() {
		return errors.Wrap(ErrInvalidAddress, "organizer is the zero address")
	}
	return nil
}

func (c Config) Duration() time.Duration {
	return time.Duration(c.RaffleDuration) * time.Second
}
