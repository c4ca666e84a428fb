package mocks

import (
	"context"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

var _ ports.LedgerStore = (*MockLedgerStore)(nil)

// MockLedgerStore is a mock implementation of LedgerStore. Without Func
// fields it loads nothing and accepts every commit.
type MockLedgerStore struct {
	LoadFunc   func(ctx context.Context) (*domain.Snapshot, error)
	CommitFunc func(ctx context.Context, cs *domain.Changeset) error
	CloseFunc  func() error

	Commits []*domain.Changeset
}

func (m *MockLedgerStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil, nil
}

func (m *MockLedgerStore) Commit(ctx context.Context, cs *domain.Changeset) error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx, cs); err != nil {
			return err
		}
	}
	m.Commits = append(m.Commits, cs)
	return nil
}

func (m *MockLedgerStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
