package server

import (
	"time"

	"github.com/voltx/rec-hub/internal/domain"
)

type GetTokenInfoRequest struct{}

type GetFacilityRequest struct {
	ID string `json:"id"`
}

type ListFacilitiesRequest struct{}

type ListFacilitiesResponse struct {
	Facilities []domain.Facility `json:"facilities"`
}

type GetBalanceRequest struct {
	Account domain.Address `json:"account"`
}

type BalanceResponse struct {
	Account domain.Address `json:"account"`
	Active  domain.Amount  `json:"active"`
	Retired domain.Amount  `json:"retired"`
}

type GetEntryRequest struct {
	Index uint64 `json:"index"`
}

type ListAccountEntriesRequest struct {
	Account domain.Address `json:"account"`
	Offset  uint64         `json:"offset"`
	Limit   uint64         `json:"limit"`
}

type ListEntriesResponse struct {
	Entries []domain.Entry `json:"entries"`
	Total   uint64         `json:"total"`
}

type MintRequest struct {
	To          domain.Address `json:"to"`
	AmountMWh   uint64         `json:"amount_mwh"`
	FacilityID  string         `json:"facility_id"`
	Metadata    string         `json:"metadata,omitempty"`
	GeneratedAt *time.Time     `json:"generated_at,omitempty"`
}

// TransferRequest moves Amount base units. From defaults to the caller.
type TransferRequest struct {
	From   *domain.Address `json:"from,omitempty"`
	To     domain.Address  `json:"to"`
	Amount domain.Amount   `json:"amount"`
}

// RetireRequest retires Amount base units. Account defaults to the caller.
type RetireRequest struct {
	Account *domain.Address `json:"account,omitempty"`
	Amount  domain.Amount   `json:"amount"`
	Reason  string          `json:"reason"`
}
