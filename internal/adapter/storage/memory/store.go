package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

// Store keeps committed ledger state and its outbox in process memory. It is
// used when no database is configured and in tests; state does not survive a
// restart of the process.
type Store struct {
	mu sync.Mutex

	initialised bool
	meta        domain.LedgerMeta
	facilities  []domain.Facility
	facilityPos map[string]int
	balances    map[domain.Address]domain.Balance
	accounts    []domain.Address
	allowances  map[domain.AllowanceKey]domain.Allowance
	entries     []domain.Entry

	outboxEnabled bool
	outbox        []domain.OutboxMessage
	nextOutbox    int64

	// CommitFunc, when set, runs before a changeset is applied; a non-nil
	// error aborts the commit.
	CommitFunc func(cs *domain.Changeset) error

	log *zap.Logger
}

var (
	_ ports.LedgerStore = (*Store)(nil)
	_ ports.OutboxStore = (*Store)(nil)
)

func NewStore(log *zap.Logger) *Store {
	return &Store{
		facilityPos: make(map[string]int),
		balances:    make(map[domain.Address]domain.Balance),
		allowances:  make(map[domain.AllowanceKey]domain.Allowance),
		nextOutbox:  1,
		log:         log,
	}
}

func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return nil, nil
	}

	snap := &domain.Snapshot{
		Meta:       s.meta,
		Facilities: append([]domain.Facility(nil), s.facilities...),
		Entries:    append([]domain.Entry(nil), s.entries...),
	}
	for _, a := range s.accounts {
		snap.Balances = append(snap.Balances, s.balances[a])
	}
	for _, a := range s.allowances {
		snap.Allowances = append(snap.Allowances, a)
	}
	return snap, nil
}

func (s *Store) Commit(ctx context.Context, cs *domain.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CommitFunc != nil {
		if err := s.CommitFunc(cs); err != nil {
			return err
		}
	}

	// Encode the outbox first so a marshal failure leaves state untouched.
	var pending []domain.OutboxMessage
	for _, e := range cs.Events {
		if !s.outboxEnabled {
			break
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		pending = append(pending, domain.OutboxMessage{
			EventID:   e.ID,
			Subject:   e.Subject(),
			Payload:   payload,
			CreatedAt: e.OccurredAt,
		})
	}

	s.initialised = true
	s.meta = cs.Meta
	for _, f := range cs.Facilities {
		if pos, ok := s.facilityPos[f.ID]; ok {
			s.facilities[pos] = f
			continue
		}
		s.facilityPos[f.ID] = len(s.facilities)
		s.facilities = append(s.facilities, f)
	}
	for _, b := range cs.Balances {
		if _, ok := s.balances[b.Account]; !ok {
			s.accounts = append(s.accounts, b.Account)
		}
		s.balances[b.Account] = b
	}
	for _, a := range cs.Allowances {
		key := domain.AllowanceKey{Owner: a.Owner, Spender: a.Spender}
		if a.Amount.IsZero() {
			delete(s.allowances, key)
			continue
		}
		s.allowances[key] = a
	}
	s.entries = append(s.entries, cs.Entries...)
	for _, m := range pending {
		m.ID = s.nextOutbox
		s.nextOutbox++
		s.outbox = append(s.outbox, m)
	}
	return nil
}

func (s *Store) FetchPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OutboxMessage
	for _, m := range s.outbox {
		if limit > 0 && len(out) == limit {
			break
		}
		if maxAttempts > 0 && m.Attempts >= maxAttempts {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[int64]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	kept := s.outbox[:0]
	for _, m := range s.outbox {
		if !done[m.ID] {
			kept = append(kept, m)
		}
	}
	s.outbox = kept
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Attempts++
			s.log.Debug("Outbox message failed",
				zap.Int64("id", id),
				zap.Int("attempts", s.outbox[i].Attempts),
				zap.String("reason", reason),
				zap.Time("created_at", s.outbox[i].CreatedAt),
				zap.Duration("age", time.Since(s.outbox[i].CreatedAt)),
			)
			return nil
		}
	}
	return nil
}

// EnableOutbox makes Commit record events for the relay. Without it events
// are dropped once listeners have seen them.
func (s *Store) EnableOutbox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outboxEnabled = true
}

// PendingCount reports how many events are waiting to be relayed.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

func (s *Store) Close() error {
	return nil
}
