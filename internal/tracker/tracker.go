// Package tracker closes the raffle as soon as its closing condition holds,
// so ending the sale does not depend on someone calling EndRaffle.
package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"raffle/internal/logger"
	"raffle/internal/raffle"
)

const (
	DefaultAttempts = 5
	DefaultBackoff  = 500 * time.Millisecond
)

// Service is the part of the raffle service the tracker drives.
type Service interface {
	Info() raffle.Info
	EndRaffle(ctx context.Context, caller raffle.Account) (raffle.Event, error)
}

type Tracker struct {
	service  Service
	keeper   raffle.Account
	interval time.Duration
	attempts int
	backoff  time.Duration
}

type Func[T any] func() (T, error)

// boundedRetry retries fn while it fails with errors outside the raffle
// kinds, doubling the pause after each attempt. Raffle errors are final.
func boundedRetry[T any](
	ctx context.Context,
	attempts int,
	pause time.Duration,
	fn Func[T],
) (T, error) {
	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil || raffle.KindOf(err) != "" || attempt >= attempts {
			return result, err
		}

		logger.Warn("transient failure, retrying", zap.Int("attempt", attempt), zap.Duration("pause", pause), zap.Error(err))
		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(pause):
		}
		pause *= 2
	}
}

func NewTracker(service Service, keeper raffle.Account, interval time.Duration) *Tracker {

	logger.Debug("tracker initialization", zap.Stringer("keeper", keeper), zap.Duration("interval", interval))
	return &Tracker{
		service:  service,
		keeper:   keeper,
		interval: interval,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
	}
}

// WithRetry overrides how often and how patiently a failing close is retried.
func (t *Tracker) WithRetry(attempts int, backoff time.Duration) *Tracker {
	t.attempts = attempts
	t.backoff = backoff
	return t
}

// Run checks the raffle every interval until it has left Active or ctx is
// done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if t.Tick(ctx) {
			t.Finalize()
			return nil
		}

		select {
		case <-ctx.Done():
			t.Finalize()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick makes one closing attempt and reports whether the tracker is done.
func (t *Tracker) Tick(ctx context.Context) bool {
	info := t.service.Info()
	if info.Status != raffle.StatusActive {
		return true
	}
	if !info.CanEnd {
		return false
	}
	if info.TotalSold == 0 {
		logger.Debug("closing condition met without tickets sold, waiting")
		return false
	}

	logger.Debug("closing raffle...")
	event, err := boundedRetry(ctx, t.attempts, t.backoff, func() (raffle.Event, error) {
		return t.service.EndRaffle(ctx, t.keeper)
	})

	switch {
	case err == nil:
		logger.Info("raffle closed by tracker",
			zap.Uint64("seq", event.Seq),
			zap.Uint64("winningTicket", uint64(event.WinningTicket)),
			zap.Stringer("winner", event.Winner),
		)
		return true
	case errors.Is(err, raffle.ErrRaffleNotActive):
		logger.Debug("raffle already closed")
		return true
	case raffle.KindOf(err) != "":
		logger.Warn("closing raffle rejected", zap.Error(err))
		return false
	default:
		logger.Error("closing raffle failed", zap.Error(err))
		return false
	}
}

func (t *Tracker) Finalize() {
	logger.Info("tracker stopped")
}
