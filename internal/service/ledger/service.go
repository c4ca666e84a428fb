package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/observability/telemetry"
	"github.com/voltx/rec-hub/internal/ports"
)

const (
	DefaultName   = "Voltx Renewable Energy Certificate"
	DefaultSymbol = "VREC"
)

// Config holds the token metadata and the owner installed on an empty store.
type Config struct {
	Name         string
	Symbol       string
	InitialOwner domain.Address
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithListeners registers event listeners at construction time.
func WithListeners(listeners ...ports.EventListener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, listeners...) }
}

var _ ports.LedgerService = (*Service)(nil)

// Service is the in-memory REC ledger backed by a LedgerStore. Writes are
// serialized by mu; each is staged, committed to the store and only then
// applied, so a failed call leaves no trace.
type Service struct {
	mu    sync.RWMutex
	state *state
	store ports.LedgerStore

	// dispatchMu is taken before mu is released so listeners observe
	// events in commit order.
	dispatchMu sync.Mutex
	listeners  []ports.EventListener

	cfg    Config
	now    func() time.Time
	tracer trace.Tracer
	log    *zap.Logger
}

func NewService(cfg Config, store ports.LedgerStore, log *zap.Logger, opts ...Option) *Service {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
	}
	s := &Service{
		state:  newState(cfg.InitialOwner),
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		tracer: otel.Tracer("github.com/voltx/rec-hub/internal/service/ledger"),
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads persisted state. On an empty store the configured initial
// owner is written so the ledger has an owner from its first call.
func (s *Service) Restore(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil {
		if s.cfg.InitialOwner == domain.ZeroAddress {
			return fmt.Errorf("ledger store is empty and no initial owner is configured")
		}
		st := newState(s.cfg.InitialOwner)
		if err := s.store.Commit(ctx, &domain.Changeset{Meta: st.meta}); err != nil {
			return fmt.Errorf("initialise ledger: %w", err)
		}
		s.state = st
		s.log.Info("Initialised empty ledger", zap.String("owner", st.meta.Owner.Hex()))
		return nil
	}

	st, err := stateFromSnapshot(snap)
	if err != nil {
		return err
	}
	s.state = st
	telemetry.LedgerEntries.Set(float64(len(st.entries)))
	if st.meta.Paused {
		telemetry.LedgerPaused.Set(1)
	}
	s.log.Info("Restored ledger state",
		zap.String("owner", st.meta.Owner.Hex()),
		zap.Int("facilities", len(st.order)),
		zap.Int("accounts", len(st.balances)),
		zap.Int("entries", len(st.entries)),
		zap.Bool("paused", st.meta.Paused),
	)
	return nil
}

// Subscribe adds a listener for events committed after this call.
func (s *Service) Subscribe(l ports.EventListener) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// write runs fn against a staged transaction and commits its effects.
func (s *Service) write(ctx context.Context, op string, caller domain.Address, fn func(t *txn) error) (err error) {
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.caller", caller.Hex()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		telemetry.ObserveOperation(op, err)
	}()

	s.mu.Lock()
	t := newTxn(s.state, op, s.now().UTC())
	if err := fn(t); err != nil {
		s.mu.Unlock()
		s.log.Debug("Ledger call rejected",
			zap.String("op", op),
			zap.String("caller", caller.Hex()),
			zap.Error(err),
		)
		return err
	}

	cs := t.changeset()
	start := time.Now()
	if err := s.store.Commit(ctx, cs); err != nil {
		s.mu.Unlock()
		s.log.Error("Failed to commit ledger changeset", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	telemetry.ObserveCommit(start)
	s.state.apply(t)

	s.dispatchMu.Lock()
	s.mu.Unlock()
	defer s.dispatchMu.Unlock()

	s.dispatch(ctx, cs.Events)
	return nil
}

func (s *Service) dispatch(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("Event listener panicked", zap.Any("panic", r))
				}
			}()
			l.OnEvents(ctx, events)
		}()
	}
}

func (s *Service) requireOwner(t *txn, caller domain.Address) error {
	if caller != t.meta.Owner {
		return domain.E(domain.KindUnauthorized, t.op, "caller %s is not the ledger owner", caller.Hex())
	}
	return nil
}

func (s *Service) requireNotPaused(t *txn) error {
	if t.meta.Paused {
		return domain.E(domain.KindSystemPaused, t.op, "ledger is paused")
	}
	return nil
}
