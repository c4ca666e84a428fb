package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
)

// Pause halts mint, transfer, retire and burn until Unpause.
func (s *Service) Pause(ctx context.Context, caller domain.Address) error {
	err := s.write(ctx, "Pause", caller, func(t *txn) error {
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		if t.meta.Paused {
			return domain.E(domain.KindSystemPaused, t.op, "ledger is already paused")
		}
		t.meta.Paused = true
		account := caller
		t.emit(domain.Event{Type: domain.EventPaused, Account: &account})
		return nil
	})
	if err == nil {
		s.log.Warn("Ledger paused", zap.String("by", caller.Hex()))
	}
	return err
}

func (s *Service) Unpause(ctx context.Context, caller domain.Address) error {
	err := s.write(ctx, "Unpause", caller, func(t *txn) error {
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		if !t.meta.Paused {
			return domain.E(domain.KindInvalidInput, t.op, "ledger is not paused")
		}
		t.meta.Paused = false
		account := caller
		t.emit(domain.Event{Type: domain.EventUnpaused, Account: &account})
		return nil
	})
	if err == nil {
		s.log.Info("Ledger unpaused", zap.String("by", caller.Hex()))
	}
	return err
}

func (s *Service) Paused(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.meta.Paused
}

func (s *Service) Owner(ctx context.Context) domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.meta.Owner
}

// TransferOwnership hands all owner rights to newOwner in one step.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner domain.Address) error {
	err := s.write(ctx, "TransferOwnership", caller, func(t *txn) error {
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		if newOwner == domain.ZeroAddress {
			return domain.E(domain.KindInvalidRecipient, t.op, "new owner is the null account")
		}
		previous, next := t.meta.Owner, newOwner
		t.meta.Owner = newOwner
		t.emit(domain.Event{Type: domain.EventOwnershipTransferred, From: &previous, To: &next})
		return nil
	})
	if err == nil {
		s.log.Warn("Ledger ownership transferred",
			zap.String("from", caller.Hex()),
			zap.String("to", newOwner.Hex()),
		)
	}
	return err
}

func (s *Service) TokenInfo(ctx context.Context) domain.TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.TokenInfo{
		Name:          s.cfg.Name,
		Symbol:        s.cfg.Symbol,
		Decimals:      domain.Decimals,
		Owner:         s.state.meta.Owner,
		Paused:        s.state.meta.Paused,
		Totals:        s.state.meta.Totals,
		FacilityCount: len(s.state.order),
		EntryCount:    uint64(len(s.state.entries)),
	}
}
