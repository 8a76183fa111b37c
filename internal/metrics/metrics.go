// Package metrics counts raffle activity in a go-metrics registry.
package metrics

import (
	"io"
	"math"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"raffle/internal/raffle"
)

const outcomeOK = "ok"

type Metrics struct {
	registry gometrics.Registry

	ticketsSold    gometrics.Counter
	escrowReceived gometrics.Counter
	paidOut        gometrics.Counter
	status         gometrics.Gauge
	lastSeq        gometrics.Gauge
}

func New() *Metrics {
	registry := gometrics.NewRegistry()
	return &Metrics{
		registry:       registry,
		ticketsSold:    gometrics.NewRegisteredCounter("raffle.tickets_sold", registry),
		escrowReceived: gometrics.NewRegisteredCounter("raffle.escrow_received", registry),
		paidOut:        gometrics.NewRegisteredCounter("raffle.paid_out", registry),
		status:         gometrics.NewRegisteredGauge("raffle.status", registry),
		lastSeq:        gometrics.NewRegisteredGauge("raffle.last_seq", registry),
	}
}

func (m *Metrics) Registry() gometrics.Registry {
	return m.registry
}

// ObserveCommand counts one command under its outcome: "ok" or the error kind.
// Errors outside the raffle kinds count as "internal".
func (m *Metrics) ObserveCommand(command string, err error, elapsed time.Duration) {
	outcome := outcomeOK
	if err != nil {
		outcome = raffle.KindOf(err)
		if outcome == "" {
			outcome = "internal"
		}
	}
	gometrics.GetOrRegisterCounter("commands."+command+"."+outcome, m.registry).Inc(1)
	gometrics.GetOrRegisterTimer("commands."+command+".latency", m.registry).Update(elapsed)
}

// ObserveEvent folds a committed event into the totals.
func (m *Metrics) ObserveEvent(event raffle.Event) {
	if event.Kind == raffle.EventTicketsPurchased {
		m.ticketsSold.Inc(capped(event.Tickets.Count()))
		m.escrowReceived.Inc(capped(event.Amount))
	}
	if event.Payout != nil {
		m.paidOut.Inc(capped(event.Payout.Amount))
	}
	m.lastSeq.Update(int64(event.Seq))
}

// capped converts an amount for the int64 counters, saturating at MaxInt64.
func capped(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func (m *Metrics) SetStatus(status raffle.Status) {
	m.status.Update(int64(status))
}

func (m *Metrics) TicketsSold() int64 {
	return m.ticketsSold.Count()
}

func (m *Metrics) EscrowReceived() int64 {
	return m.escrowReceived.Count()
}

func (m *Metrics) PaidOut() int64 {
	return m.paidOut.Count()
}

func (m *Metrics) CommandCount(command, outcome string) int64 {
	counter, ok := m.registry.Get("commands." + command + "." + outcome).(gometrics.Counter)
	if !ok {
		return 0
	}
	return counter.Count()
}

func (m *Metrics) WriteJSON(w io.Writer) {
	gometrics.WriteJSONOnce(m.registry, w)
}
