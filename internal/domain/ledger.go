package domain

import "time"

// EntryKind is the operation recorded by a transaction log entry.
type EntryKind string

const (
	EntryKindMint     EntryKind = "mint"
	EntryKindTransfer EntryKind = "transfer"
	EntryKindRetire   EntryKind = "retire"
	EntryKindBurn     EntryKind = "burn"
)

// Entry is one append-only record of the transaction log. Index is its
// zero-based position; FacilityID is set on mints only and Metadata carries
// the mint metadata or the retirement reason.
type Entry struct {
	Index       uint64     `json:"index"`
	From        Address    `json:"from"`
	To          Address    `json:"to"`
	Amount      Amount     `json:"amount"`
	Kind        EntryKind  `json:"kind"`
	FacilityID  string     `json:"facility_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Metadata    string     `json:"metadata,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	Operator    Address    `json:"operator"`
}

// Certificate is a mint entry together with the facility that produced it.
type Certificate struct {
	Entry    Entry    `json:"entry"`
	Facility Facility `json:"facility"`
}

// MintRequest mints AmountMWh of generation from FacilityID to To.
type MintRequest struct {
	To          Address
	AmountMWh   uint64
	FacilityID  string
	Metadata    string
	GeneratedAt *time.Time
}

// BatchMintRequest mints AmountsMWh[i] to Recipients[i], all from one facility.
type BatchMintRequest struct {
	Recipients  []Address
	AmountsMWh  []uint64
	FacilityID  string
	Metadata    string
	GeneratedAt *time.Time
}

// Totals are the ledger-wide aggregates. Supply is the circulating active
// amount and always equals Minted - Retired - Burned.
type Totals struct {
	Supply  Amount `json:"total_supply"`
	Minted  Amount `json:"total_minted"`
	Retired Amount `json:"total_retired"`
	Burned  Amount `json:"total_burned"`
}

// TokenInfo describes the certificate token and the ledger's admin state.
type TokenInfo struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Decimals      int     `json:"decimals"`
	Owner         Address `json:"owner"`
	Paused        bool    `json:"paused"`
	Totals        Totals  `json:"totals"`
	FacilityCount int     `json:"facility_count"`
	EntryCount    uint64  `json:"entry_count"`
}
