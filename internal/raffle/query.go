package raffle

import (
	"time"
)

func (r *Raffle) Config() Config {
	return r.config
}

func (r *Raffle) Organizer() Account {
	return r.config.Organizer
}

func (r *Raffle) RoleOf(account Account) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registry.RoleOf(account)
}

func (r *Raffle) TicketsOf(account Account) []TicketID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.TicketsOf(account)
}

func (r *Raffle) OwnerOf(id TicketID) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.OwnerOf(id)
}

func (r *Raffle) TotalSold() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.TotalSold()
}

func (r *Raffle) TicketPrice() uint64 {
	return r.config.TicketPrice
}

func (r *Raffle) RaffleDuration() time.Duration {
	return r.config.Duration()
}

func (r *Raffle) StartTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startTime
}

func (r *Raffle) EndTime() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endTime, r.status != StatusActive
}

func (r *Raffle) TotalEscrow() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.escrow.Total()
}

func (r *Raffle) JackpotAmount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.escrow.JackpotAmount()
}

func (r *Raffle) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Raffle) IsEnded() bool {
	return r.Status() != StatusActive
}

// Winner reports the winner once the sale has closed.
func (r *Raffle) Winner() (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.winner, r.status != StatusActive
}

// CanEnd reports whether EndRaffle would pass its closing condition now. It
// does not account for the zero-ticket case.
func (r *Raffle) CanEnd() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status == StatusActive && r.canEnd(r.now())
}

func (r *Raffle) TimeRemaining() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timeRemaining(r.now())
}

func (r *Raffle) timeRemaining(now time.Time) time.Duration {
	if r.status != StatusActive {
		return 0
	}
	remaining := r.startTime.Add(r.config.Duration()).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LastSeq is the sequence number of the last committed event.
func (r *Raffle) LastSeq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// Info is a consistent view of the raffle taken under one read lock.
type Info struct {
	Config         Config        `json:"config"`
	Status         Status        `json:"status"`
	StartTime      time.Time     `json:"startTime"`
	Deadline       time.Time     `json:"deadline"`
	EndTime        *time.Time    `json:"endTime,omitempty"`
	TimeRemaining  time.Duration `json:"timeRemaining"`
	TotalSold      uint64        `json:"totalSold"`
	TotalEscrow    uint64        `json:"totalEscrow"`
	JackpotAmount  uint64        `json:"jackpotAmount"`
	Winner         *Account      `json:"winner,omitempty"`
	WinningTicket  TicketID      `json:"winningTicket,omitempty"`
	Seed           *Seed         `json:"seed,omitempty"`
	CanEnd         bool          `json:"canEnd"`
	Claimed        bool          `json:"claimed"`
	Reclaimed      bool          `json:"reclaimed"`
	HouseWithdrawn bool          `json:"houseWithdrawn"`
	Buyers         int           `json:"buyers"`
	LastSeq        uint64        `json:"lastSeq"`
}

func (r *Raffle) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	info := Info{
		Config:         r.config,
		Status:         r.status,
		StartTime:      r.startTime,
		Deadline:       r.startTime.Add(r.config.Duration()),
		TimeRemaining:  r.timeRemaining(now),
		TotalSold:      r.ledger.TotalSold(),
		TotalEscrow:    r.escrow.Total(),
		JackpotAmount:  r.escrow.JackpotAmount(),
		CanEnd:         r.status == StatusActive && r.canEnd(now),
		Claimed:        r.escrow.Claimed(),
		Reclaimed:      r.escrow.Reclaimed(),
		HouseWithdrawn: r.escrow.HouseWithdrawn(),
		Buyers:         r.registry.Buyers(),
		LastSeq:        r.seq,
	}
	if r.status != StatusActive {
		endTime, winner, seed := r.endTime, r.winner, r.seed
		info.EndTime = &endTime
		info.Winner = &winner
		info.WinningTicket = r.winningTicket
		info.Seed = &seed
	}
	return info
}
