package raffle

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// HandleUnclaimedJackpot sweeps a jackpot the winner did not claim within
// timeoutSeconds of the end of the sale. The jackpot goes back to the
// organizer; it is never carried into another raffle.
func (r *Raffle) HandleUnclaimedJackpot(ctx context.Context, caller Account, timeoutSeconds uint64) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.config.Organizer {
		return Event{}, errors.Wrapf(ErrUnauthorized, "%s is not the organizer", caller)
	}
	if r.status == StatusActive {
		return Event{}, errors.Wrap(ErrRaffleNotEnded, "no winner drawn yet")
	}
	if err := r.escrow.checkSettle(); err != nil {
		return Event{}, err
	}
	now := r.now()
	if !timeoutReached(r.endTime, now, timeoutSeconds) {
		return Event{}, errors.Wrapf(ErrTimeoutNotReached, "ended at %s, timeout %ds", r.endTime.Format(time.RFC3339), timeoutSeconds)
	}
	amount := r.escrow.JackpotAmount()
	return r.commit(ctx, Event{
		Kind:   EventJackpotReclaimed,
		At:     now,
		Caller: caller,
		Amount: amount,
		Payout: &Payout{Recipient: r.config.Organizer, Amount: amount, Reason: EventJackpotReclaimed},
	})
}

func timeoutReached(endTime, now time.Time, timeoutSeconds uint64) bool {
	if timeoutSeconds > maxDurationSeconds {
		return false
	}
	elapsed := now.Sub(endTime)
	return elapsed >= time.Duration(timeoutSeconds)*time.Second
}
