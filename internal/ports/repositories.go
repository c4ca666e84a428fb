package ports

import (
	"context"

	"github.com/voltx/rec-hub/internal/domain"
)

// LedgerStore persists ledger state. Commit must apply a changeset
// atomically; Load returns nil when nothing has been stored yet.
type LedgerStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Commit(ctx context.Context, cs *domain.Changeset) error
	Close() error
}

// OutboxStore exposes events committed alongside ledger state so they can be
// relayed to the broker at least once. FetchPending skips messages that have
// already failed maxAttempts times; maxAttempts <= 0 means no limit.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}
