package storage

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"raffle/internal/raffle"
)

// Amounts are stored as base-10 strings: sqlite cannot hold uint64 values
// above the int64 range.

type RaffleRecord struct {
	ID                uint   `gorm:"primaryKey"`
	TicketPrice       string `gorm:"not null"`
	MaxTicketsPerTx   uint64 `gorm:"not null"`
	JackpotPercentage uint64 `gorm:"not null"`
	RaffleDuration    uint64 `gorm:"not null"`
	MaxTickets        uint64 `gorm:"not null"`
	Organizer         string `gorm:"not null"`
	StartUnixTime     int64  `gorm:"not null"`
}

type EventRecord struct {
	ID            string `gorm:"primaryKey"`
	Seq           uint64 `gorm:"uniqueIndex;not null"`
	Kind          string `gorm:"index;not null"`
	AtUnixNano    int64  `gorm:"not null"`
	Caller        string `gorm:"index;not null"`
	Target        string
	Role          uint8
	FirstTicket   uint64
	LastTicket    uint64
	Amount        string `gorm:"default:'0'"`
	Winner        string
	WinningTicket uint64
	Seed          string
}

type PayoutRecord struct {
	ID         string `gorm:"primaryKey"`
	EventSeq   uint64 `gorm:"uniqueIndex;not null"`
	Recipient  string `gorm:"index;not null"`
	Amount     string `gorm:"not null"`
	Reason     string `gorm:"not null"`
	AtUnixNano int64  `gorm:"not null"`
}

func (RaffleRecord) TableName() string { return "raffle_configs" }

func (EventRecord) TableName() string { return "raffle_events" }

func (PayoutRecord) TableName() string { return "payouts" }

func NewRaffleRecord(config raffle.Config, startTime time.Time) *RaffleRecord {
	return &RaffleRecord{
		ID:                1,
		TicketPrice:       strconv.FormatUint(config.TicketPrice, 10),
		MaxTicketsPerTx:   config.MaxTicketsPerTx,
		JackpotPercentage: config.JackpotPercentage,
		RaffleDuration:    config.RaffleDuration,
		MaxTickets:        config.MaxTickets,
		Organizer:         config.Organizer.String(),
		StartUnixTime:     startTime.Unix(),
	}
}

func (r *RaffleRecord) Config() (raffle.Config, error) {
	price, err := strconv.ParseUint(r.TicketPrice, 10, 64)
	if err != nil {
		return raffle.Config{}, errors.Wrap(err, "ticket price")
	}
	organizer, err := raffle.ParseAccount(r.Organizer)
	if err != nil {
		return raffle.Config{}, err
	}
	return raffle.Config{
		TicketPrice:       price,
		MaxTicketsPerTx:   r.MaxTicketsPerTx,
		JackpotPercentage: r.JackpotPercentage,
		RaffleDuration:    r.RaffleDuration,
		MaxTickets:        r.MaxTickets,
		Organizer:         organizer,
	}, nil
}

func (r *RaffleRecord) StartTime() time.Time {
	return time.Unix(r.StartUnixTime, 0).UTC()
}

func formatAccount(account raffle.Account) string {
	if account.IsZero() {
		return ""
	}
	return account.String()
}

func parseAccount(s string) (raffle.Account, error) {
	if s == "" {
		return raffle.Account{}, nil
	}
	return raffle.ParseAccount(s)
}

func newEventRecord(id string, event raffle.Event) *EventRecord {
	record := &EventRecord{
		ID:            id,
		Seq:           event.Seq,
		Kind:          string(event.Kind),
		AtUnixNano:    event.At.UnixNano(),
		Caller:        formatAccount(event.Caller),
		Target:        formatAccount(event.Target),
		Role:          uint8(event.Role),
		FirstTicket:   uint64(event.Tickets.First),
		LastTicket:    uint64(event.Tickets.Last),
		Amount:        strconv.FormatUint(event.Amount, 10),
		Winner:        formatAccount(event.Winner),
		WinningTicket: uint64(event.WinningTicket),
	}
	if event.Seed != (raffle.Seed{}) {
		record.Seed = event.Seed.String()
	}
	return record
}

func newPayoutRecord(id string, event raffle.Event) *PayoutRecord {
	return &PayoutRecord{
		ID:         id,
		EventSeq:   event.Seq,
		Recipient:  event.Payout.Recipient.String(),
		Amount:     strconv.FormatUint(event.Payout.Amount, 10),
		Reason:     string(event.Payout.Reason),
		AtUnixNano: event.At.UnixNano(),
	}
}

// Event rebuilds the journal entry. The payout is taken from the matching
// payout row when there is one.
func (r *EventRecord) Event(payout *PayoutRecord) (raffle.Event, error) {
	event := raffle.Event{
		Seq:           r.Seq,
		Kind:          raffle.EventKind(r.Kind),
		At:            time.Unix(0, r.AtUnixNano).UTC(),
		Role:          raffle.Role(r.Role),
		Tickets:       raffle.TicketRange{First: raffle.TicketID(r.FirstTicket), Last: raffle.TicketID(r.LastTicket)},
		WinningTicket: raffle.TicketID(r.WinningTicket),
	}
	var err error
	if event.Caller, err = parseAccount(r.Caller); err != nil {
		return event, errors.Wrapf(err, "event %d caller", r.Seq)
	}
	if event.Target, err = parseAccount(r.Target); err != nil {
		return event, errors.Wrapf(err, "event %d target", r.Seq)
	}
	if event.Winner, err = parseAccount(r.Winner); err != nil {
		return event, errors.Wrapf(err, "event %d winner", r.Seq)
	}
	if event.Amount, err = strconv.ParseUint(r.Amount, 10, 64); err != nil {
		return event, errors.Wrapf(err, "event %d amount", r.Seq)
	}
	if r.Seed != "" {
		if event.Seed, err = raffle.ParseSeed(r.Seed); err != nil {
			return event, errors.Wrapf(err, "event %d seed", r.Seq)
		}
	}
	if payout != nil {
		recipient, err := raffle.ParseAccount(payout.Recipient)
		if err != nil {
			return event, errors.Wrapf(err, "event %d payout recipient", r.Seq)
		}
		amount, err := strconv.ParseUint(payout.Amount, 10, 64)
		if err != nil {
			return event, errors.Wrapf(err, "event %d payout amount", r.Seq)
		}
		event.Payout = &raffle.Payout{Recipient: recipient, Amount: amount, Reason: raffle.EventKind(payout.Reason)}
	}
	return event, nil
}
