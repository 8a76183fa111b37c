package raffle

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Role uint8

const (
	Unassigned Role = iota
	Organizer
	Buyer
)

// Wire codes used by the dapp frontend: ORGANIZER = 0, BUYER = 1.
const (
	organizerCode  = 0
	buyerCode      = 1
	unassignedCode = 2
)

func (r Role) String() string {
	switch r {
	case Organizer:
		return "organizer"
	case Buyer:
		return "buyer"
	default:
		return "unassigned"
	}
}

func (r Role) Code() int {
	switch r {
	case Organizer:
		return organizerCode
	case Buyer:
		return buyerCode
	default:
		return unassignedCode
	}
}

// ParseRole accepts a role name or its wire code.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "organizer", strconv.Itoa(organizerCode):
		return Organizer, nil
	case "buyer", strconv.Itoa(buyerCode):
		return Buyer, nil
	case "unassigned", strconv.Itoa(unassignedCode):
		return Unassigned, nil
	}
	return Unassigned, errors.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Registry is the access control registry: the organizer is fixed at
// creation, every other account is Unassigned until made a Buyer.
type Registry struct {
	organizer Account
	roles     map[Account]Role
}

func NewRegistry(organizer Account) *Registry {
	return &Registry{
		organizer: organizer,
		roles:     make(map[Account]Role),
	}
}

func (r *Registry) Organizer() Account {
	return r.organizer
}

func (r *Registry) RoleOf(account Account) Role {
	if account == r.organizer {
		return Organizer
	}
	if role, ok := r.roles[account]; ok {
		return role
	}
	return Unassigned
}

func (r *Registry) checkAssign(caller, target Account, role Role) error {
	if caller != r.organizer {
		return errors.Wrapf(ErrUnauthorized, "%s is not the organizer", caller)
	}
	switch role {
	case Buyer:
	case Organizer, Unassigned:
		return errors.Wrapf(ErrUnauthorized, "role %s cannot be assigned", role)
	default:
		return errors.Wrapf(ErrUnauthorized, "unknown role %d", role)
	}
	if target.IsZero() {
		return errors.Wrap(ErrInvalidAddress, "zero target")
	}
	if target == r.organizer {
		return errors.Wrap(ErrUnauthorized, "organizer role cannot be reassigned")
	}
	return nil
}

func (r *Registry) set(target Account, role Role) {
	r.roles[target] = role
}

// Buyers returns the number of accounts holding the Buyer role.
func (r *Registry) Buyers() int {
	n := 0
	for _, role := range r.roles {
		if role == Buyer {
			n++
		}
	}
	return n
}
