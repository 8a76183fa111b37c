package raffle

import (
	"context"
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventRoleAssigned        EventKind = "role_assigned"
	EventTicketsPurchased    EventKind = "tickets_purchased"
	EventRaffleEnded         EventKind = "raffle_ended"
	EventJackpotClaimed      EventKind = "jackpot_claimed"
	EventJackpotReclaimed    EventKind = "jackpot_reclaimed"
	EventHouseShareWithdrawn EventKind = "house_share_withdrawn"
)

// Payout is a transfer instruction out of escrow. It is committed together
// with the event that causes it.
type Payout struct {
	Recipient Account   `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Reason    EventKind `json:"reason"`
}

// Event is the record of one committed command. Replaying the events of a
// raffle in Seq order rebuilds its state.
type Event struct {
	Seq           uint64
	Kind          EventKind
	At            time.Time
	Caller        Account
	Target        Account
	Role          Role
	Tickets       TicketRange
	Amount        uint64
	Winner        Account
	WinningTicket TicketID
	Seed          Seed
	Payout        *Payout
}

// eventJSON is the wire form of Event: fields an event kind does not set
// are left out instead of rendered as zero addresses or seeds.
type eventJSON struct {
	Seq           uint64       `json:"seq"`
	Kind          EventKind    `json:"kind"`
	At            time.Time    `json:"at"`
	Caller        *Account     `json:"caller,omitempty"`
	Target        *Account     `json:"target,omitempty"`
	Role          *Role        `json:"role,omitempty"`
	Tickets       *TicketRange `json:"tickets,omitempty"`
	Amount        uint64       `json:"amount,omitempty"`
	Winner        *Account     `json:"winner,omitempty"`
	WinningTicket TicketID     `json:"winningTicket,omitempty"`
	Seed          *Seed        `json:"seed,omitempty"`
	Payout        *Payout      `json:"payout,omitempty"`
}

func optionalAccount(a Account) *Account {
	if a.IsZero() {
		return nil
	}
	return &a
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Seq:           e.Seq,
		Kind:          e.Kind,
		At:            e.At,
		Caller:        optionalAccount(e.Caller),
		Target:        optionalAccount(e.Target),
		Amount:        e.Amount,
		Winner:        optionalAccount(e.Winner),
		WinningTicket: e.WinningTicket,
		Payout:        e.Payout,
	}
	if e.Role != Unassigned {
		role := e.Role
		out.Role = &role
	}
	if e.Tickets != (TicketRange{}) {
		tickets := e.Tickets
		out.Tickets = &tickets
	}
	if e.Seed != (Seed{}) || e.Kind == EventRaffleEnded {
		seed := e.Seed
		out.Seed = &seed
	}
	return json.Marshal(out)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Event{
		Seq:           in.Seq,
		Kind:          in.Kind,
		At:            in.At,
		Amount:        in.Amount,
		WinningTicket: in.WinningTicket,
		Payout:        in.Payout,
	}
	if in.Caller != nil {
		e.Caller = *in.Caller
	}
	if in.Target != nil {
		e.Target = *in.Target
	}
	if in.Role != nil {
		e.Role = *in.Role
	}
	if in.Tickets != nil {
		e.Tickets = *in.Tickets
	}
	if in.Winner != nil {
		e.Winner = *in.Winner
	}
	if in.Seed != nil {
		e.Seed = *in.Seed
	}
	return nil
}

// Journal durably records events. Record runs inside the command's critical
// section before the event is applied; an error aborts the command.
type Journal interface {
	Record(ctx context.Context, event Event) error
}

type JournalFunc func(ctx context.Context, event Event) error

func (f JournalFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}
