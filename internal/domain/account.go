package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an account holder. The zero value is the null account:
// it never holds a balance and is the counterparty of retire and burn entries.
type Address = common.Address

// ZeroAddress is the null account.
var ZeroAddress = Address{}

// ParseAddress parses a 0x-prefixed hex account address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, E(KindInvalidInput, "parse address", "invalid account address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Balance holds the two per-account quantities tracked by the ledger.
type Balance struct {
	Account Address `json:"account"`
	Active  Amount  `json:"active"`
	Retired Amount  `json:"retired"`
}

// Allowance is the amount a spender may still move out of an owner's active balance.
type Allowance struct {
	Owner   Address `json:"owner"`
	Spender Address `json:"spender"`
	Amount  Amount  `json:"amount"`
}

// AllowanceKey indexes allowances by owner and spender.
type AllowanceKey struct {
	Owner   Address
	Spender Address
}
