package raffle

import (
	"github.com/pkg/errors"
)

var (
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrRaffleNotActive    = errors.New("RaffleNotActive")
	ErrRaffleNotEnded     = errors.New("RaffleNotEnded")
	ErrExceedsMaxPerTx    = errors.New("ExceedsMaxPerTx")
	ErrExceedsMaxTickets  = errors.New("ExceedsMaxTickets")
	ErrIncorrectPayment   = errors.New("IncorrectPayment")
	ErrNoTicketsSold      = errors.New("NoTicketsSold")
	ErrNotWinner          = errors.New("NotWinner")
	ErrAlreadyClaimed     = errors.New("AlreadyClaimed")
	ErrTimeoutNotReached  = errors.New("TimeoutNotReached")
	ErrInvalidAddress     = errors.New("InvalidAddress")
	ErrInvalidTicketCount = errors.New("InvalidTicketCount")
	ErrInvalidConfig      = errors.New("InvalidConfig")
	ErrCorruptJournal     = errors.New("CorruptJournal")
)

var kinds = []error{
	ErrUnauthorized,
	ErrRaffleNotActive,
	ErrRaffleNotEnded,
	ErrExceedsMaxPerTx,
	ErrExceedsMaxTickets,
	ErrIncorrectPayment,
	ErrNoTicketsSold,
	ErrNotWinner,
	ErrAlreadyClaimed,
	ErrTimeoutNotReached,
	ErrInvalidAddress,
	ErrInvalidTicketCount,
	ErrInvalidConfig,
	ErrCorruptJournal,
}

// KindOf returns the name of the raffle error kind wrapped by err, or ""
// when err carries none of them.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}
