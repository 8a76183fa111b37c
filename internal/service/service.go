// Package service runs one raffle on top of its persistent journal.
package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/raffle"
	"raffle/internal/storage"
)

type RaffleService struct {
	raffle  *raffle.Raffle
	storage storage.Storage
	metrics *metrics.Metrics
}

// AccountView is what the service knows about one account.
type AccountView struct {
	Account raffle.Account    `json:"account"`
	Role    raffle.Role       `json:"role"`
	Tickets []raffle.TicketID `json:"tickets"`
	Balance decimal.Decimal   `json:"balance"`
}

// New restores the raffle kept in store, or starts a new one from config when
// the store is empty. Once a raffle is stored its own parameters win over
// config.
func New(ctx context.Context, config raffle.Config, store storage.Storage, seeds raffle.SeedSource, m *metrics.Metrics, opts ...raffle.Option) (*RaffleService, error) {
	opts = append(opts, raffle.WithJournal(store))

	record, err := store.GetRaffle(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return create(ctx, config, store, seeds, m, opts)
	case err != nil:
		return nil, errors.Wrap(err, "load raffle")
	}

	stored, err := record.Config()
	if err != nil {
		return nil, errors.Wrap(err, "decode stored raffle")
	}
	if stored != config {
		logger.Warn("configured raffle differs from the stored one, keeping stored parameters",
			zap.Any("stored", stored),
			zap.Any("configured", config),
		)
	}

	logger.Debug("restoring raffle...")
	events, err := store.GetEvents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load events")
	}
	r, err := raffle.Restore(stored, record.StartTime(), seeds, events, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "restore raffle")
	}
	for _, event := range events {
		m.ObserveEvent(event)
	}
	m.SetStatus(r.Status())
	logger.Info("raffle restored",
		zap.Int("events", len(events)),
		zap.String("status", r.Status().String()),
		zap.Uint64("totalSold", r.TotalSold()),
	)

	return &RaffleService{raffle: r, storage: store, metrics: m}, nil
}

func create(ctx context.Context, config raffle.Config, store storage.Storage, seeds raffle.SeedSource, m *metrics.Metrics, opts []raffle.Option) (*RaffleService, error) {
	r, err := raffle.New(config, seeds, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.SaveRaffle(ctx, storage.NewRaffleRecord(config, r.StartTime())); err != nil {
		return nil, errors.Wrap(err, "save raffle")
	}
	m.SetStatus(r.Status())
	logger.Info("raffle started",
		zap.String("organizer", config.Organizer.String()),
		zap.Time("startTime", r.StartTime()),
		zap.Duration("duration", config.Duration()),
	)
	return &RaffleService{raffle: r, storage: store, metrics: m}, nil
}

func (s *RaffleService) run(command string, fn func() (raffle.Event, error), fields ...zap.Field) (raffle.Event, error) {
	start := time.Now()
	event, err := fn()
	s.metrics.ObserveCommand(command, err, time.Since(start))

	fields = append(fields, zap.String("command", command))
	if err != nil {
		if kind := raffle.KindOf(err); kind != "" {
			logger.Info("command rejected", append(fields, zap.String("kind", kind), zap.Error(err))...)
		} else {
			logger.Error("command failed", append(fields, zap.Error(err))...)
		}
		return event, err
	}

	s.metrics.ObserveEvent(event)
	s.metrics.SetStatus(s.raffle.Status())
	logger.Info("command committed", append(fields, zap.Uint64("seq", event.Seq), zap.String("kind", string(event.Kind)))...)
	return event, nil
}

func (s *RaffleService) AssignRole(ctx context.Context, caller, target raffle.Account, role raffle.Role) (raffle.Event, error) {
	return s.run("assign_role", func() (raffle.Event, error) {
		return s.raffle.AssignRole(ctx, caller, target, role)
	}, zap.Stringer("caller", caller), zap.Stringer("target", target), zap.Stringer("role", role))
}

func (s *RaffleService) PurchaseTickets(ctx context.Context, caller raffle.Account, count, payment uint64) (raffle.Event, error) {
	return s.run("purchase_tickets", func() (raffle.Event, error) {
		return s.raffle.PurchaseTickets(ctx, caller, count, payment)
	}, zap.Stringer("caller", caller), zap.Uint64("count", count), zap.Uint64("payment", payment))
}

func (s *RaffleService) EndRaffle(ctx context.Context, caller raffle.Account) (raffle.Event, error) {
	return s.run("end_raffle", func() (raffle.Event, error) {
		return s.raffle.EndRaffle(ctx, caller)
	}, zap.Stringer("caller", caller))
}

func (s *RaffleService) ClaimJackpot(ctx context.Context, caller raffle.Account) (raffle.Event, error) {
	return s.run("claim_jackpot", func() (raffle.Event, error) {
		return s.raffle.ClaimJackpot(ctx, caller)
	}, zap.Stringer("caller", caller))
}

func (s *RaffleService) HandleUnclaimedJackpot(ctx context.Context, caller raffle.Account, timeoutSeconds uint64) (raffle.Event, error) {
	return s.run("handle_unclaimed_jackpot", func() (raffle.Event, error) {
		return s.raffle.HandleUnclaimedJackpot(ctx, caller, timeoutSeconds)
	}, zap.Stringer("caller", caller), zap.Uint64("timeoutSeconds", timeoutSeconds))
}

func (s *RaffleService) WithdrawHouseShare(ctx context.Context, caller raffle.Account) (raffle.Event, error) {
	return s.run("withdraw_house_share", func() (raffle.Event, error) {
		return s.raffle.WithdrawHouseShare(ctx, caller)
	}, zap.Stringer("caller", caller))
}

// Raffle exposes the read side of the running raffle.
func (s *RaffleService) Raffle() *raffle.Raffle {
	return s.raffle
}

func (s *RaffleService) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *RaffleService) Info() raffle.Info {
	return s.raffle.Info()
}

func (s *RaffleService) Account(ctx context.Context, account raffle.Account) (AccountView, error) {
	balance, err := s.storage.GetBalance(ctx, account)
	if err != nil {
		return AccountView{}, errors.Wrap(err, "load balance")
	}
	tickets := s.raffle.TicketsOf(account)
	if tickets == nil {
		tickets = []raffle.TicketID{}
	}
	return AccountView{
		Account: account,
		Role:    s.raffle.RoleOf(account),
		Tickets: tickets,
		Balance: balance,
	}, nil
}

// Events pages through the journal. A limit of zero returns everything after
// the given seq.
func (s *RaffleService) Events(ctx context.Context, after uint64, limit int) ([]raffle.Event, error) {
	return s.storage.GetEventsAfter(ctx, after, limit)
}
