package raffle

import (
	"github.com/pkg/errors"
)

type TicketID uint64

// TicketRange is an inclusive range of sequential ticket ids.
type TicketRange struct {
	First TicketID `json:"first"`
	Last  TicketID `json:"last"`
}

func (r TicketRange) Count() uint64 {
	if r.Last < r.First {
		return 0
	}
	return uint64(r.Last-r.First) + 1
}

func (r TicketRange) IDs() []TicketID {
	ids := make([]TicketID, 0, r.Count())
	for id := r.First; id <= r.Last && id != 0; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Ledger issues tickets and tracks who owns them. Ticket i is stored at
// owners[i-1].
type Ledger struct {
	maxPerTx   uint64
	maxTickets uint64
	registry   *Registry
	owners     []Account
	byAccount  map[Account][]TicketID
}

func NewLedger(maxPerTx, maxTickets uint64, registry *Registry) *Ledger {
	return &Ledger{
		maxPerTx:   maxPerTx,
		maxTickets: maxTickets,
		registry:   registry,
		byAccount:  make(map[Account][]TicketID),
	}
}

func (l *Ledger) TotalSold() uint64 {
	return uint64(len(l.owners))
}

func (l *Ledger) SoldOut() bool {
	return l.TotalSold() == l.maxTickets
}

// TicketsOf returns the ids owned by account in issue order.
func (l *Ledger) TicketsOf(account Account) []TicketID {
	ids := l.byAccount[account]
	out := make([]TicketID, len(ids))
	copy(out, ids)
	return out
}

func (l *Ledger) OwnerOf(id TicketID) (Account, bool) {
	if id == 0 || uint64(id) > l.TotalSold() {
		return Account{}, false
	}
	return l.owners[id-1], true
}

func (l *Ledger) checkIssue(buyer Account, count uint64) (TicketRange, error) {
	if role := l.registry.RoleOf(buyer); role != Buyer {
		return TicketRange{}, errors.Wrapf(ErrUnauthorized, "%s has role %s", buyer, role)
	}
	if count == 0 {
		return TicketRange{}, errors.Wrap(ErrInvalidTicketCount, "at least one ticket is required")
	}
	if count > l.maxPerTx {
		return TicketRange{}, errors.Wrapf(ErrExceedsMaxPerTx, "requested %d, limit %d", count, l.maxPerTx)
	}
	sold := l.TotalSold()
	if count > l.maxTickets-sold {
		return TicketRange{}, errors.Wrapf(ErrExceedsMaxTickets, "requested %d, %d left", count, l.maxTickets-sold)
	}
	return TicketRange{First: TicketID(sold + 1), Last: TicketID(sold + count)}, nil
}

func (l *Ledger) issue(buyer Account, tickets TicketRange) error {
	if tickets.Count() == 0 || uint64(tickets.First) != l.TotalSold()+1 {
		return errors.Wrapf(ErrCorruptJournal, "ticket range %d-%d does not follow %d", tickets.First, tickets.Last, l.TotalSold())
	}
	if l.TotalSold()+tickets.Count() > l.maxTickets {
		return errors.Wrapf(ErrCorruptJournal, "ticket range %d-%d exceeds max tickets", tickets.First, tickets.Last)
	}
	for _, id := range tickets.IDs() {
		l.owners = append(l.owners, buyer)
		l.byAccount[buyer] = append(l.byAccount[buyer], id)
	}
	return nil
}
