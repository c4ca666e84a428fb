package domain

// LedgerMeta is the singleton administrative row of the ledger.
type LedgerMeta struct {
	Owner  Address `json:"owner"`
	Paused bool    `json:"paused"`
	Totals Totals  `json:"totals"`
}

// Snapshot is the complete persisted state, used to rebuild the in-memory
// ledger at startup. Facilities are in registration order and Entries in
// index order.
type Snapshot struct {
	Meta       LedgerMeta
	Facilities []Facility
	Balances   []Balance
	Allowances []Allowance
	Entries    []Entry
}

// Changeset is everything one committed ledger call wrote. Stores apply it
// atomically: either all of it becomes durable or none of it does.
type Changeset struct {
	Meta       LedgerMeta
	Facilities []Facility
	Balances   []Balance
	Allowances []Allowance
	Entries    []Entry
	Events     []Event
}

// Empty reports whether the changeset carries no state mutation.
func (c *Changeset) Empty() bool {
	return len(c.Facilities) == 0 && len(c.Balances) == 0 && len(c.Allowances) == 0 &&
		len(c.Entries) == 0 && len(c.Events) == 0
}
