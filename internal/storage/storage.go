package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"raffle/internal/raffle"
)

var ErrNotFound = errors.New("storage: not found")

type Storage interface {
	// raffle
	SaveRaffle(ctx context.Context, record *RaffleRecord) error
	GetRaffle(ctx context.Context) (*RaffleRecord, error)

	// journal
	AppendEvent(ctx context.Context, event raffle.Event) error
	Record(ctx context.Context, event raffle.Event) error
	GetEvents(ctx context.Context) ([]raffle.Event, error)
	GetEventsAfter(ctx context.Context, seq uint64, limit int) ([]raffle.Event, error)

	// payout
	GetPayouts(ctx context.Context) ([]*PayoutRecord, error)
	GetPayoutsByRecipient(ctx context.Context, recipient raffle.Account) ([]*PayoutRecord, error)
	GetBalance(ctx context.Context, recipient raffle.Account) (decimal.Decimal, error)

	Close() error
}
