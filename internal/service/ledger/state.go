package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltx/rec-hub/internal/domain"
)

// state is the committed ledger. It is only mutated by apply, under the
// service write lock.
type state struct {
	meta       domain.LedgerMeta
	facilities map[string]domain.Facility
	order      []string
	balances   map[domain.Address]domain.Balance
	allowances map[domain.AllowanceKey]domain.Amount
	entries    []domain.Entry
	byAccount  map[domain.Address][]uint64
}

func newState(owner domain.Address) *state {
	return &state{
		meta:       domain.LedgerMeta{Owner: owner},
		facilities: make(map[string]domain.Facility),
		balances:   make(map[domain.Address]domain.Balance),
		allowances: make(map[domain.AllowanceKey]domain.Amount),
		byAccount:  make(map[domain.Address][]uint64),
	}
}

// stateFromSnapshot rebuilds the in-memory ledger and checks the supply
// invariants of the loaded data.
func stateFromSnapshot(snap *domain.Snapshot) (*state, error) {
	s := newState(snap.Meta.Owner)
	s.meta = snap.Meta

	for _, f := range snap.Facilities {
		if _, dup := s.facilities[f.ID]; dup {
			return nil, fmt.Errorf("snapshot: duplicate facility %q", f.ID)
		}
		s.facilities[f.ID] = f
		s.order = append(s.order, f.ID)
	}

	sum := domain.Amount{}
	for _, b := range snap.Balances {
		s.balances[b.Account] = b
		var err error
		if sum, err = sum.Add(b.Active); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	if sum.Cmp(s.meta.Totals.Supply) != 0 {
		return nil, fmt.Errorf("snapshot: active balances sum to %s, supply is %s", sum, s.meta.Totals.Supply)
	}
	if err := checkConservation(s.meta.Totals); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	for _, a := range snap.Allowances {
		s.allowances[domain.AllowanceKey{Owner: a.Owner, Spender: a.Spender}] = a.Amount
	}

	for i, e := range snap.Entries {
		if e.Index != uint64(i) {
			return nil, fmt.Errorf("snapshot: entry %d stored at position %d", e.Index, i)
		}
		s.entries = append(s.entries, e)
		s.index(e)
	}
	return s, nil
}

// checkConservation verifies Supply == Minted - Retired - Burned.
func checkConservation(t domain.Totals) error {
	out, err := t.Retired.Add(t.Burned)
	if err != nil {
		return err
	}
	expected, err := t.Minted.Sub(out)
	if err != nil {
		return err
	}
	if expected.Cmp(t.Supply) != 0 {
		return fmt.Errorf("supply %s does not match minted %s - retired %s - burned %s",
			t.Supply, t.Minted, t.Retired, t.Burned)
	}
	return nil
}

func (s *state) index(e domain.Entry) {
	if e.From != domain.ZeroAddress {
		s.byAccount[e.From] = append(s.byAccount[e.From], e.Index)
	}
	if e.To != domain.ZeroAddress && e.To != e.From {
		s.byAccount[e.To] = append(s.byAccount[e.To], e.Index)
	}
}

func (s *state) apply(t *txn) {
	s.meta = t.meta
	for _, id := range t.facilityOrder {
		if _, exists := s.facilities[id]; !exists {
			s.order = append(s.order, id)
		}
		s.facilities[id] = t.facilities[id]
	}
	for _, a := range t.balanceOrder {
		s.balances[a] = t.balances[a]
	}
	for _, k := range t.allowanceOrder {
		if amt := t.allowances[k]; amt.IsZero() {
			delete(s.allowances, k)
		} else {
			s.allowances[k] = amt
		}
	}
	for _, e := range t.entries {
		s.entries = append(s.entries, e)
		s.index(e)
	}
}

// txn stages the effects of one ledger call on top of the committed state.
// Nothing in base is touched until the changeset has been stored.
type txn struct {
	base *state
	op   string
	now  time.Time

	meta           domain.LedgerMeta
	facilities     map[string]domain.Facility
	facilityOrder  []string
	balances       map[domain.Address]domain.Balance
	balanceOrder   []domain.Address
	allowances     map[domain.AllowanceKey]domain.Amount
	allowanceOrder []domain.AllowanceKey
	entries        []domain.Entry
	events         []domain.Event
	newID          func() string
}

func newTxn(base *state, op string, now time.Time) *txn {
	return &txn{
		base:       base,
		op:         op,
		now:        now,
		meta:       base.meta,
		facilities: make(map[string]domain.Facility),
		balances:   make(map[domain.Address]domain.Balance),
		allowances: make(map[domain.AllowanceKey]domain.Amount),
		newID:      func() string { return uuid.New().String() },
	}
}

func (t *txn) facility(id string) (domain.Facility, bool) {
	if f, ok := t.facilities[id]; ok {
		return f, true
	}
	f, ok := t.base.facilities[id]
	return f, ok
}

func (t *txn) putFacility(f domain.Facility) {
	if _, staged := t.facilities[f.ID]; !staged {
		t.facilityOrder = append(t.facilityOrder, f.ID)
	}
	t.facilities[f.ID] = f
}

func (t *txn) balance(a domain.Address) domain.Balance {
	if b, ok := t.balances[a]; ok {
		return b
	}
	if b, ok := t.base.balances[a]; ok {
		return b
	}
	return domain.Balance{Account: a}
}

func (t *txn) putBalance(b domain.Balance) {
	if _, staged := t.balances[b.Account]; !staged {
		t.balanceOrder = append(t.balanceOrder, b.Account)
	}
	t.balances[b.Account] = b
}

func (t *txn) allowance(k domain.AllowanceKey) domain.Amount {
	if a, ok := t.allowances[k]; ok {
		return a
	}
	return t.base.allowances[k]
}

func (t *txn) putAllowance(k domain.AllowanceKey, amount domain.Amount) {
	if _, staged := t.allowances[k]; !staged {
		t.allowanceOrder = append(t.allowanceOrder, k)
	}
	t.allowances[k] = amount
}

// appendEntry assigns the next log index and the call timestamp.
func (t *txn) appendEntry(e domain.Entry) domain.Entry {
	e.Index = uint64(len(t.base.entries) + len(t.entries))
	e.Timestamp = t.now
	t.entries = append(t.entries, e)
	return e
}

func (t *txn) emit(e domain.Event) {
	e.ID = t.newID()
	e.OccurredAt = t.now
	t.events = append(t.events, e)
}

func (t *txn) changeset() *domain.Changeset {
	cs := &domain.Changeset{
		Meta:    t.meta,
		Entries: t.entries,
		Events:  t.events,
	}
	for _, id := range t.facilityOrder {
		cs.Facilities = append(cs.Facilities, t.facilities[id])
	}
	for _, a := range t.balanceOrder {
		cs.Balances = append(cs.Balances, t.balances[a])
	}
	for _, k := range t.allowanceOrder {
		cs.Allowances = append(cs.Allowances, domain.Allowance{Owner: k.Owner, Spender: k.Spender, Amount: t.allowances[k]})
	}
	return cs
}
