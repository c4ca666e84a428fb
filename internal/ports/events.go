package ports

import (
	"context"

	"github.com/voltx/rec-hub/internal/domain"
)

// EventListener receives committed ledger events in commit order. Listeners
// run synchronously and may call LedgerService read methods.
type EventListener interface {
	OnEvents(ctx context.Context, events []domain.Event)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(ctx context.Context, events []domain.Event)

func (f EventListenerFunc) OnEvents(ctx context.Context, events []domain.Event) {
	f(ctx, events)
}
