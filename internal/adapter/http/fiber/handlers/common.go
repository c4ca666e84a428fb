package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/voltx/rec-hub/internal/domain"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.E(domain.KindInvalidInput, "parse body", "invalid request body: %v", err)
	}
	return nil
}

func addressParam(c *fiber.Ctx, name string) (domain.Address, error) {
	return domain.ParseAddress(c.Params(name))
}

func indexParam(c *fiber.Ctx) (uint64, error) {
	raw := c.Params("index")
	idx, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, domain.E(domain.KindInvalidInput, "parse index", "invalid entry index %q", raw)
	}
	return idx, nil
}

// pageParams reads ?offset=&limit= with defaults and an upper bound on limit.
func pageParams(c *fiber.Ctx) (offset, limit uint64, err error) {
	offset, err = queryUint(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err = queryUint(c, "limit", defaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit == 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit, nil
}

func queryUint(c *fiber.Ctx, name string, def uint64) (uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, domain.E(domain.KindInvalidInput, "parse query", "invalid %s %q", name, raw)
	}
	return v, nil
}

// amountInput accepts either base units ("amount") or a decimal token
// quantity ("tokens"), never both.
type amountInput struct {
	Amount *domain.Amount `json:"amount"`
	Tokens string         `json:"tokens"`
}

func (in amountInput) resolve() (domain.Amount, error) {
	switch {
	case in.Amount != nil && in.Tokens != "":
		return domain.Amount{}, domain.E(domain.KindInvalidInput, "parse amount", "set either amount or tokens, not both")
	case in.Tokens != "":
		return domain.ParseTokens(in.Tokens)
	case in.Amount != nil:
		return *in.Amount, nil
	default:
		return domain.Amount{}, nil
	}
}

// accountOr returns the explicit account or, when omitted, the caller.
func accountOr(account *domain.Address, caller domain.Address) domain.Address {
	if account == nil {
		return caller
	}
	return *account
}

// BalanceResponse is the balance view of one account.
type BalanceResponse struct {
	Account       domain.Address  `json:"account"`
	Active        domain.Amount   `json:"active"`
	Retired       domain.Amount   `json:"retired"`
	ActiveTokens  decimal.Decimal `json:"active_tokens"`
	RetiredTokens decimal.Decimal `json:"retired_tokens"`
	EntryCount    int             `json:"entry_count"`
}

// PageResponse wraps a slice of entries with its paging window.
type PageResponse struct {
	Items  []domain.Entry `json:"items"`
	Total  uint64         `json:"total"`
	Offset uint64         `json:"offset"`
	Limit  uint64         `json:"limit"`
}
