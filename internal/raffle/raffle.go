// Package raffle implements the ticket sale, escrow and payout state machine
// of a single raffle: Active -> Ended -> JackpotClaimed | JackpotExpired.
//
// Every command runs under one writer lock, validates completely before
// touching state, hands the resulting Event to the Journal and only then
// applies it. Queries take the read lock.
package raffle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Clock func() time.Time

type Option func(*Raffle)

func WithClock(clock Clock) Option {
	return func(r *Raffle) {
		r.clock = clock
	}
}

func WithJournal(journal Journal) Option {
	return func(r *Raffle) {
		r.journal = journal
	}
}

type Raffle struct {
	mu sync.RWMutex

	config   Config
	clock    Clock
	seeds    SeedSource
	journal  Journal
	registry *Registry
	ledger   *Ledger
	escrow   *Escrow

	seq           uint64
	status        Status
	startTime     time.Time
	endTime       time.Time
	winner        Account
	winningTicket TicketID
	seed          Seed
}

// New creates an Active raffle whose sale starts now. The start is kept at
// second precision and rounded up, so the sale never closes before
// creation + duration.
func New(config Config, seeds SeedSource, opts ...Option) (*Raffle, error) {
	r, err := newRaffle(config, seeds, opts)
	if err != nil {
		return nil, err
	}
	r.startTime = ceilSecond(r.now())
	return r, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Before(t) {
		truncated = truncated.Add(time.Second)
	}
	return truncated
}

// Restore rebuilds a raffle created at startTime by replaying its events.
// Events are applied without revalidation and without being journaled again.
func Restore(config Config, startTime time.Time, seeds SeedSource, events []Event, opts ...Option) (*Raffle, error) {
	r, err := newRaffle(config, seeds, opts)
	if err != nil {
		return nil, err
	}
	r.startTime = startTime.UTC()
	for _, event := range events {
		if event.Seq != r.seq+1 {
			return nil, errors.Wrapf(ErrCorruptJournal, "event %d follows %d", event.Seq, r.seq)
		}
		if err := r.apply(event); err != nil {
			return nil, errors.Wrapf(err, "replay event %d", event.Seq)
		}
		r.seq = event.Seq
	}
	return r, nil
}

func newRaffle(config Config, seeds SeedSource, opts []Option) (*Raffle, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if seeds == nil {
		return nil, errors.New("raffle: nil seed source")
	}
	registry := NewRegistry(config.Organizer)
	r := &Raffle{
		config:   config,
		clock:    time.Now,
		seeds:    seeds,
		registry: registry,
		ledger:   NewLedger(config.MaxTicketsPerTx, config.MaxTickets, registry),
		escrow:   NewEscrow(config.JackpotPercentage),
		status:   StatusActive,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Raffle) now() time.Time {
	return r.clock().UTC()
}

// commit journals the event and applies it. Callers hold the writer lock and
// have validated everything the event implies.
func (r *Raffle) commit(ctx context.Context, event Event) (Event, error) {
	event.Seq = r.seq + 1
	if r.journal != nil {
		if err := r.journal.Record(ctx, event); err != nil {
			return Event{}, errors.Wrap(err, "journal event")
		}
	}
	if err := r.apply(event); err != nil {
		return Event{}, err
	}
	r.seq = event.Seq
	return event, nil
}

func (r *Raffle) apply(event Event) error {
	switch event.Kind {
	case EventRoleAssigned:
		r.registry.set(event.Target, event.Role)
	case EventTicketsPurchased:
		if r.status != StatusActive {
			return errors.Wrap(ErrCorruptJournal, "purchase after sale closed")
		}
		if err := r.ledger.issue(event.Caller, event.Tickets); err != nil {
			return err
		}
		r.escrow.record(event.Amount)
	case EventRaffleEnded:
		if r.status != StatusActive {
			return errors.Wrap(ErrCorruptJournal, "raffle ended twice")
		}
		r.status = StatusEnded
		r.endTime = event.At.UTC()
		r.winner = event.Winner
		r.winningTicket = event.WinningTicket
		r.seed = event.Seed
	case EventJackpotClaimed:
		if r.status != StatusEnded {
			return errors.Wrapf(ErrCorruptJournal, "claim while %s", r.status)
		}
		if err := r.escrow.markClaimed(); err != nil {
			return err
		}
		r.status = StatusJackpotClaimed
	case EventJackpotReclaimed:
		if r.status != StatusEnded {
			return errors.Wrapf(ErrCorruptJournal, "reclaim while %s", r.status)
		}
		if err := r.escrow.markReclaimed(); err != nil {
			return err
		}
		r.status = StatusJackpotExpired
	case EventHouseShareWithdrawn:
		if r.status == StatusActive {
			return errors.Wrap(ErrCorruptJournal, "house share withdrawn during sale")
		}
		if err := r.escrow.markHouseWithdrawn(); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrCorruptJournal, "unknown event kind %q", event.Kind)
	}
	return nil
}

// AssignRole lets the organizer make target a Buyer.
func (r *Raffle) AssignRole(ctx context.Context, caller, target Account, role Role) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registry.checkAssign(caller, target, role); err != nil {
		return Event{}, err
	}
	return r.commit(ctx, Event{
		Kind:   EventRoleAssigned,
		At:     r.now(),
		Caller: caller,
		Target: target,
		Role:   role,
	})
}

// PurchaseTickets issues count tickets to caller against an exact payment of
// ticketPrice * count.
func (r *Raffle) PurchaseTickets(ctx context.Context, caller Account, count, payment uint64) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusActive {
		return Event{}, errors.Wrapf(ErrRaffleNotActive, "raffle is %s", r.status)
	}
	tickets, err := r.ledger.checkIssue(caller, count)
	if err != nil {
		return Event{}, err
	}
	expected, ok := expectedPayment(r.config.TicketPrice, count)
	if !ok {
		return Event{}, errors.Wrap(ErrIncorrectPayment, "expected payment overflows")
	}
	if err := r.escrow.checkPayment(payment, expected); err != nil {
		return Event{}, err
	}
	return r.commit(ctx, Event{
		Kind:    EventTicketsPurchased,
		At:      r.now(),
		Caller:  caller,
		Tickets: tickets,
		Amount:  payment,
	})
}

func (r *Raffle) canEnd(now time.Time) bool {
	deadline := r.startTime.Add(r.config.Duration())
	return !now.Before(deadline) || r.ledger.SoldOut()
}

// EndRaffle closes the sale and draws the winner. Anyone may call it once the
// duration has elapsed or every ticket is sold.
func (r *Raffle) EndRaffle(ctx context.Context, caller Account) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusActive {
		return Event{}, errors.Wrapf(ErrRaffleNotActive, "raffle is %s", r.status)
	}
	now := r.now()
	if !r.canEnd(now) {
		return Event{}, errors.Wrapf(ErrRaffleNotEnded, "sale runs until %s", r.startTime.Add(r.config.Duration()).Format(time.RFC3339))
	}
	sold := r.ledger.TotalSold()
	if sold == 0 {
		return Event{}, errors.Wrap(ErrNoTicketsSold, "closing condition met with no tickets")
	}
	seed, err := r.seeds.Seed(SeedRequest{EndTime: now, TotalSold: sold})
	if err != nil {
		return Event{}, errors.Wrap(err, "request seed")
	}
	ticket, winner, err := r.ledger.SelectWinner(seed)
	if err != nil {
		return Event{}, err
	}
	return r.commit(ctx, Event{
		Kind:          EventRaffleEnded,
		At:            now,
		Caller:        caller,
		Winner:        winner,
		WinningTicket: ticket,
		Seed:          seed,
	})
}

// ClaimJackpot pays the jackpot to the winner.
func (r *Raffle) ClaimJackpot(ctx context.Context, caller Account) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusActive {
		return Event{}, errors.Wrap(ErrRaffleNotEnded, "no winner drawn yet")
	}
	if caller != r.winner {
		return Event{}, errors.Wrapf(ErrNotWinner, "%s is not the winner", caller)
	}
	if err := r.escrow.checkSettle(); err != nil {
		return Event{}, err
	}
	amount := r.escrow.JackpotAmount()
	return r.commit(ctx, Event{
		Kind:   EventJackpotClaimed,
		At:     r.now(),
		Caller: caller,
		Amount: amount,
		Payout: &Payout{Recipient: r.winner, Amount: amount, Reason: EventJackpotClaimed},
	})
}

// WithdrawHouseShare pays the part of escrow that is not jackpot to the
// organizer, once, after the sale has closed.
func (r *Raffle) WithdrawHouseShare(ctx context.Context, caller Account) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.config.Organizer {
		return Event{}, errors.Wrapf(ErrUnauthorized, "%s is not the organizer", caller)
	}
	if r.status == StatusActive {
		return Event{}, errors.Wrap(ErrRaffleNotEnded, "sale still open")
	}
	if r.escrow.HouseWithdrawn() {
		return Event{}, errors.Wrap(ErrAlreadyClaimed, "house share already withdrawn")
	}
	amount := r.escrow.HouseShare()
	return r.commit(ctx, Event{
		Kind:   EventHouseShareWithdrawn,
		At:     r.now(),
		Caller: caller,
		Amount: amount,
		Payout: &Payout{Recipient: r.config.Organizer, Amount: amount, Reason: EventHouseShareWithdrawn},
	})
}
