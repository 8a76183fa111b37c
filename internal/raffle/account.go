package raffle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Account identifies a participant by its 20-byte address.
type Account common.Address

func ParseAccount(s string) (Account, error) {
	if !common.IsHexAddress(s) {
		return Account{}, errors.Wrapf(ErrInvalidAddress, "%q is not a hex address", s)
	}
	account := Account(common.HexToAddress(s))
	if account.IsZero() {
		return Account{}, errors.Wrap(ErrInvalidAddress, "zero address")
	}
	return account, nil
}

func MustParseAccount(s string) Account {
	account, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return account
}

func (a Account) IsZero() bool {
	return a == Account{}
}

// String returns the EIP-55 checksummed form.
func (a Account) String() string {
	return common.Address(a).Hex()
}

func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
