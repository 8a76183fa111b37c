package raffle

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	organizer = MustParseAccount("0x00000000000000000000000000000000000000aa")
	alice     = MustParseAccount("0x00000000000000000000000000000000000000a1")
	bob       = MustParseAccount("0x00000000000000000000000000000000000000b0")
	mallory   = MustParseAccount("0x00000000000000000000000000000000000000ee")
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func seedOf(n byte) Seed {
	var seed Seed
	seed[len(seed)-1] = n
	return seed
}

func fixedSeeds(seed Seed) SeedSource {
	return SeedSourceFunc(func(SeedRequest) (Seed, error) {
		return seed, nil
	})
}

func scenarioConfig() Config {
	return Config{
		TicketPrice:       1,
		MaxTicketsPerTx:   10,
		JackpotPercentage: 90,
		RaffleDuration:    3600,
		MaxTickets:        8,
		Organizer:         organizer,
	}
}

func newTestRaffle(t *testing.T, config Config, seed Seed, opts ...Option) (*Raffle, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	r, err := New(config, fixedSeeds(seed), append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return r, clock
}

func assignBuyers(t *testing.T, r *Raffle, buyers ...Account) {
	t.Helper()
	for _, buyer := range buyers {
		_, err := r.AssignRole(context.Background(), organizer, buyer, Buyer)
		require.NoError(t, err)
	}
}

func TestRaffle_Scenario(t *testing.T) {
	ctx := context.Background()
	// seed 5 mod 8 = 5 -> ticket 6, owned by bob
	r, _ := newTestRaffle(t, scenarioConfig(), seedOf(5))
	assignBuyers(t, r, alice, bob)

	event, err := r.PurchaseTickets(ctx, alice, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, TicketRange{First: 1, Last: 3}, event.Tickets)
	assert.Equal(t, []TicketID{1, 2, 3}, r.TicketsOf(alice))
	assert.Equal(t, uint64(3), r.TotalEscrow())
	assert.Equal(t, uint64(2), r.JackpotAmount())

	_, err = r.PurchaseTickets(ctx, bob, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, []TicketID{4, 5, 6, 7, 8}, r.TicketsOf(bob))
	assert.Equal(t, uint64(8), r.TotalEscrow())
	assert.Equal(t, uint64(8), r.TotalSold())
	assert.True(t, r.CanEnd())

	ended, err := r.EndRaffle(ctx, mallory)
	require.NoError(t, err)
	assert.Equal(t, TicketID(6), ended.WinningTicket)
	assert.Equal(t, bob, ended.Winner)
	winner, ok := r.Winner()
	require.True(t, ok)
	assert.Equal(t, bob, winner)
	assert.True(t, r.IsEnded())

	claimed, err := r.ClaimJackpot(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, claimed.Payout)
	assert.Equal(t, uint64(7), claimed.Payout.Amount)
	assert.Equal(t, bob, claimed.Payout.Recipient)
	assert.Equal(t, StatusJackpotClaimed, r.Status())

	_, err = r.ClaimJackpot(ctx, bob)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed), "got %v", err)
}

func TestRaffle_AssignRole(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRaffle(t, scenarioConfig(), seedOf(0))

	tests := []struct {
		name   string
		caller Account
		target Account
		role   Role
		want   error
	}{
		{"non organizer", alice, bob, Buyer, ErrUnauthorized},
		{"organizer role", organizer, alice, Organizer, ErrUnauthorized},
		{"unassigned role", organizer, alice, Unassigned, ErrUnauthorized},
		{"reassign organizer", organizer, organizer, Buyer, ErrUnauthorized},
		{"zero target", organizer, Account{}, Buyer, ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.AssignRole(ctx, tt.caller, tt.target, tt.role)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.Equal(t, Organizer, r.RoleOf(organizer))
	assert.Equal(t, Unassigned, r.RoleOf(alice))

	_, err := r.AssignRole(ctx, organizer, alice, Buyer)
	require.NoError(t, err)
	_, err = r.AssignRole(ctx, organizer, alice, Buyer)
	require.NoError(t, err)
	assert.Equal(t, Buyer, r.RoleOf(alice))
	assert.Equal(t, 1, r.Info().Buyers)
}

func TestRaffle_PurchaseTicketsRejects(t *testing.T) {
	ctx := context.Background()
	config := scenarioConfig()
	config.TicketPrice = 10
	config.MaxTicketsPerTx = 4
	r, _ := newTestRaffle(t, config, seedOf(0))
	assignBuyers(t, r, alice)

	tests := []struct {
		name    string
		caller  Account
		count   uint64
		payment uint64
		want    error
	}{
		{"unassigned caller", bob, 1, 10, ErrUnauthorized},
		{"organizer cannot buy", organizer, 1, 10, ErrUnauthorized},
		{"zero tickets", alice, 0, 0, ErrInvalidTicketCount},
		{"above per tx limit", alice, 5, 50, ErrExceedsMaxPerTx},
		{"underpaid", alice, 2, 19, ErrIncorrectPayment},
		{"overpaid", alice, 2, 21, ErrIncorrectPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.PurchaseTickets(ctx, tt.caller, tt.count, tt.payment)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, uint64(0), r.TotalSold())
			assert.Equal(t, uint64(0), r.TotalEscrow())
		})
	}

	_, err := r.PurchaseTickets(ctx, alice, 4, 40)
	require.NoError(t, err)
	_, err = r.PurchaseTickets(ctx, alice, 4, 40)
	require.NoError(t, err)
	_, err = r.PurchaseTickets(ctx, alice, 1, 10)
	assert.True(t, errors.Is(err, ErrExceedsMaxTickets), "got %v", err)
	assert.Equal(t, uint64(8), r.TotalSold())
}

func TestRaffle_SoldNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	config := scenarioConfig()
	config.MaxTickets = 25
	config.MaxTicketsPerTx = 7
	r, _ := newTestRaffle(t, config, seedOf(0))
	assignBuyers(t, r, alice, bob)

	for i := uint64(0); i < 40; i++ {
		buyer := alice
		if i%2 == 1 {
			buyer = bob
		}
		count := i%9 + 1
		event, err := r.PurchaseTickets(ctx, buyer, count, count)
		if err == nil {
			assert.LessOrEqual(t, event.Tickets.Count(), config.MaxTicketsPerTx)
		}
		assert.LessOrEqual(t, r.TotalSold(), config.MaxTickets)
		assert.Equal(t, r.TotalEscrow()*config.JackpotPercentage/100, r.JackpotAmount())
	}
	assert.Equal(t, r.TotalSold(), uint64(len(r.TicketsOf(alice))+len(r.TicketsOf(bob))))
}

func TestRaffle_EndRaffle(t *testing.T) {
	ctx := context.Background()

	t.Run("before deadline and cap", func(t *testing.T) {
		r, clock := newTestRaffle(t, scenarioConfig(), seedOf(0))
		assignBuyers(t, r, alice)
		_, err := r.PurchaseTickets(ctx, alice, 1, 1)
		require.NoError(t, err)

		clock.Advance(59 * time.Minute)
		assert.False(t, r.CanEnd())
		_, err = r.EndRaffle(ctx, alice)
		assert.True(t, errors.Is(err, ErrRaffleNotEnded), "got %v", err)
		assert.Equal(t, StatusActive, r.Status())

		clock.Advance(time.Minute)
		assert.True(t, r.CanEnd())
		assert.Equal(t, time.Duration(0), r.TimeRemaining())
		event, err := r.EndRaffle(ctx, mallory)
		require.NoError(t, err)
		assert.Equal(t, alice, event.Winner)
		endTime, ok := r.EndTime()
		require.True(t, ok)
		assert.Equal(t, clock.Now(), endTime)

		_, err = r.EndRaffle(ctx, alice)
		assert.True(t, errors.Is(err, ErrRaffleNotActive), "got %v", err)
		_, err = r.PurchaseTickets(ctx, alice, 1, 1)
		assert.True(t, errors.Is(err, ErrRaffleNotActive), "got %v", err)
	})

	t.Run("no tickets sold", func(t *testing.T) {
		r, clock := newTestRaffle(t, scenarioConfig(), seedOf(0))
		assignBuyers(t, r, alice)
		clock.Advance(2 * time.Hour)

		_, err := r.EndRaffle(ctx, organizer)
		assert.True(t, errors.Is(err, ErrNoTicketsSold), "got %v", err)
		assert.Contains(t, err.Error(), "no tickets")
		assert.Equal(t, StatusActive, r.Status())

		_, err = r.PurchaseTickets(ctx, alice, 2, 2)
		require.NoError(t, err)
		_, err = r.EndRaffle(ctx, organizer)
		require.NoError(t, err)
		assert.Equal(t, StatusEnded, r.Status())
	})

	t.Run("seed source failure leaves raffle active", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		failing := SeedSourceFunc(func(SeedRequest) (Seed, error) {
			return Seed{}, errors.New("beacon unavailable")
		})
		r, err := New(scenarioConfig(), failing, WithClock(clock.Now))
		require.NoError(t, err)
		assignBuyers(t, r, alice)
		_, err = r.PurchaseTickets(ctx, alice, 8, 8)
		require.NoError(t, err)

		_, err = r.EndRaffle(ctx, alice)
		require.Error(t, err)
		assert.Equal(t, StatusActive, r.Status())
		_, ok := r.Winner()
		assert.False(t, ok)
	})
}

func TestRaffle_StartNeverPrecedesCreation(t *testing.T) {
	ctx := context.Background()
	config := scenarioConfig()
	config.RaffleDuration = 1
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 900_000_000, time.UTC)}
	created := clock.Now()

	r, err := New(config, fixedSeeds(seedOf(0)), WithClock(clock.Now))
	require.NoError(t, err)
	assert.False(t, r.StartTime().Before(created), "start %s before creation %s", r.StartTime(), created)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC), r.StartTime())

	assignBuyers(t, r, alice)
	_, err = r.PurchaseTickets(ctx, alice, 1, 1)
	require.NoError(t, err)

	clock.Advance(200 * time.Millisecond)
	_, err = r.EndRaffle(ctx, alice)
	assert.True(t, errors.Is(err, ErrRaffleNotEnded), "got %v", err)

	clock.Advance(time.Second)
	_, err = r.EndRaffle(ctx, alice)
	require.NoError(t, err)
}

func TestRaffle_ClaimJackpot(t *testing.T) {
	ctx := context.Background()
	r, clock := newTestRaffle(t, scenarioConfig(), seedOf(0))
	assignBuyers(t, r, alice, bob)

	_, err := r.ClaimJackpot(ctx, alice)
	assert.True(t, errors.Is(err, ErrRaffleNotEnded), "got %v", err)

	_, err = r.PurchaseTickets(ctx, alice, 2, 2)
	require.NoError(t, err)
	_, err = r.PurchaseTickets(ctx, bob, 2, 2)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	ended, err := r.EndRaffle(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, alice, ended.Winner)

	_, err = r.ClaimJackpot(ctx, bob)
	assert.True(t, errors.Is(err, ErrNotWinner), "got %v", err)

	event, err := r.ClaimJackpot(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), event.Amount)

	_, err = r.HandleUnclaimedJackpot(ctx, organizer, 0)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed), "got %v", err)
}

func TestRaffle_HandleUnclaimedJackpot(t *testing.T) {
	ctx := context.Background()
	const day = uint64(86400)
	r, clock := newTestRaffle(t, scenarioConfig(), seedOf(1))
	assignBuyers(t, r, alice)

	_, err := r.HandleUnclaimedJackpot(ctx, organizer, day)
	assert.True(t, errors.Is(err, ErrRaffleNotEnded), "got %v", err)

	_, err = r.PurchaseTickets(ctx, alice, 8, 8)
	require.NoError(t, err)
	_, err = r.EndRaffle(ctx, alice)
	require.NoError(t, err)

	_, err = r.HandleUnclaimedJackpot(ctx, alice, day)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	clock.Advance(time.Duration(day)*time.Second - time.Second)
	_, err = r.HandleUnclaimedJackpot(ctx, organizer, day)
	assert.True(t, errors.Is(err, ErrTimeoutNotReached), "got %v", err)

	_, err = r.HandleUnclaimedJackpot(ctx, organizer, ^uint64(0))
	assert.True(t, errors.Is(err, ErrTimeoutNotReached), "got %v", err)

	clock.Advance(time.Second)
	event, err := r.HandleUnclaimedJackpot(ctx, organizer, day)
	require.NoError(t, err)
	require.NotNil(t, event.Payout)
	assert.Equal(t, organizer, event.Payout.Recipient)
	assert.Equal(t, uint64(7), event.Payout.Amount)
	assert.Equal(t, StatusJackpotExpired, r.Status())

	_, err = r.HandleUnclaimedJackpot(ctx, organizer, day)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed), "got %v", err)
	_, err = r.ClaimJackpot(ctx, alice)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed), "got %v", err)
}

func TestRaffle_WithdrawHouseShare(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRaffle(t, scenarioConfig(), seedOf(0))
	assignBuyers(t, r, alice)

	_, err := r.WithdrawHouseShare(ctx, organizer)
	assert.True(t, errors.Is(err, ErrRaffleNotEnded), "got %v", err)

	_, err = r.PurchaseTickets(ctx, alice, 8, 8)
	require.NoError(t, err)
	_, err = r.EndRaffle(ctx, alice)
	require.NoError(t, err)

	_, err = r.WithdrawHouseShare(ctx, alice)
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	event, err := r.WithdrawHouseShare(ctx, organizer)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), event.Payout.Amount)
	assert.Equal(t, StatusEnded, r.Status())

	_, err = r.WithdrawHouseShare(ctx, organizer)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed), "got %v", err)

	_, err = r.ClaimJackpot(ctx, alice)
	require.NoError(t, err)
}

func TestRaffle_JournalFailureHasNoEffect(t *testing.T) {
	ctx := context.Background()
	fail := false
	var recorded []Event
	journal := JournalFunc(func(_ context.Context, event Event) error {
		if fail {
			return errors.New("disk full")
		}
		recorded = append(recorded, event)
		return nil
	})
	r, _ := newTestRaffle(t, scenarioConfig(), seedOf(0), WithJournal(journal))
	assignBuyers(t, r, alice)

	fail = true
	_, err := r.PurchaseTickets(ctx, alice, 2, 2)
	require.Error(t, err)
	assert.Equal(t, "", KindOf(err))
	assert.Equal(t, uint64(0), r.TotalSold())
	assert.Equal(t, uint64(0), r.TotalEscrow())
	assert.Empty(t, r.TicketsOf(alice))
	assert.Equal(t, uint64(1), r.LastSeq())

	fail = false
	event, err := r.PurchaseTickets(ctx, alice, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), event.Seq)
	require.Len(t, recorded, 2)
	assert.Equal(t, EventRoleAssigned, recorded[0].Kind)
	assert.Equal(t, EventTicketsPurchased, recorded[1].Kind)
}

func TestRaffle_Restore(t *testing.T) {
	ctx := context.Background()
	var events []Event
	journal := JournalFunc(func(_ context.Context, event Event) error {
		events = append(events, event)
		return nil
	})
	r, clock := newTestRaffle(t, scenarioConfig(), seedOf(3), WithJournal(journal))
	assignBuyers(t, r, alice, bob)
	_, err := r.PurchaseTickets(ctx, alice, 3, 3)
	require.NoError(t, err)
	_, err = r.PurchaseTickets(ctx, bob, 5, 5)
	require.NoError(t, err)
	_, err = r.EndRaffle(ctx, alice)
	require.NoError(t, err)

	restored, err := Restore(r.Config(), r.StartTime(), fixedSeeds(seedOf(9)), events, WithClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, r.Info(), restored.Info())
	assert.Equal(t, r.TicketsOf(bob), restored.TicketsOf(bob))

	winner, _ := r.Winner()
	_, err = restored.ClaimJackpot(ctx, winner)
	require.NoError(t, err)

	t.Run("gap in sequence", func(t *testing.T) {
		_, err := Restore(r.Config(), r.StartTime(), fixedSeeds(Seed{}), events[1:])
		assert.True(t, errors.Is(err, ErrCorruptJournal), "got %v", err)
	})

	t.Run("purchase after end", func(t *testing.T) {
		broken := append([]Event{}, events...)
		broken = append(broken, Event{Seq: uint64(len(events) + 1), Kind: EventTicketsPurchased, Caller: alice, Tickets: TicketRange{First: 9, Last: 9}, Amount: 1})
		_, err := Restore(r.Config(), r.StartTime(), fixedSeeds(Seed{}), broken)
		assert.True(t, errors.Is(err, ErrCorruptJournal), "got %v", err)
	})
}

func TestRaffle_ConcurrentPurchases(t *testing.T) {
	ctx := context.Background()
	config := scenarioConfig()
	config.MaxTickets = 99
	config.MaxTicketsPerTx = 3

	var seqs []uint64
	journal := JournalFunc(func(_ context.Context, event Event) error {
		seqs = append(seqs, event.Seq)
		return nil
	})
	r, _ := newTestRaffle(t, config, seedOf(0), WithJournal(journal))
	buyers := []Account{alice, bob, mallory}
	assignBuyers(t, r, buyers...)

	var wg sync.WaitGroup
	errs := make(chan error, 1000)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := buyers[i%len(buyers)]
			for j := 0; j < 10; j++ {
				count := uint64(j%3) + 1
				if _, err := r.PurchaseTickets(ctx, buyer, count, count); err != nil && !errors.Is(err, ErrExceedsMaxTickets) {
					errs <- err
				}
			}
		}(i)
	}
	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				info := r.Info()
				if info.TotalSold > config.MaxTickets || info.TotalSold != info.TotalEscrow {
					errs <- errors.Errorf("inconsistent snapshot: sold %d escrow %d", info.TotalSold, info.TotalEscrow)
					return
				}
				_ = r.TicketsOf(alice)
			}
		}()
	}
	wg.Wait()
	close(done)
	readers.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	sold := r.TotalSold()
	assert.LessOrEqual(t, sold, config.MaxTickets)
	assert.Equal(t, sold, r.TotalEscrow())

	var ids []TicketID
	for _, buyer := range buyers {
		for _, id := range r.TicketsOf(buyer) {
			owner, ok := r.OwnerOf(id)
			require.True(t, ok)
			assert.Equal(t, buyer, owner)
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	require.Len(t, ids, int(sold))
	for i, id := range ids {
		assert.Equal(t, TicketID(i+1), id)
	}
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
	assert.Equal(t, uint64(len(seqs)), r.LastSeq())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "", KindOf(nil))
	assert.Equal(t, "NotWinner", KindOf(ErrNotWinner))
	assert.Equal(t, "ExceedsMaxPerTx", KindOf(errors.Wrapf(ErrExceedsMaxPerTx, "requested %d", 11)))
	assert.Equal(t, "TimeoutNotReached", KindOf(errors.Wrap(errors.Wrap(ErrTimeoutNotReached, "inner"), "outer")))
	assert.Equal(t, "", KindOf(errors.New("something else")))
}
