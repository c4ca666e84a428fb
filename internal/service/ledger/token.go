package ledger

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
)

func (s *Service) Mint(ctx context.Context, caller domain.Address, req domain.MintRequest) (*domain.Entry, error) {
	var entry domain.Entry
	err := s.write(ctx, "Mint", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		var err error
		entry, err = s.mintOne(t, caller, req.To, req.AmountMWh, req.FacilityID, req.Metadata, req.GeneratedAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Certificates minted",
		zap.String("to", entry.To.Hex()),
		zap.String("facility_id", entry.FacilityID),
		zap.Uint64("amount_mwh", req.AmountMWh),
		zap.Uint64("entry_index", entry.Index),
	)
	return &entry, nil
}

// BatchMint mints to several recipients from one facility in a single call.
func (s *Service) BatchMint(ctx context.Context, caller domain.Address, req domain.BatchMintRequest) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := s.write(ctx, "BatchMint", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		if len(req.Recipients) == 0 {
			return domain.E(domain.KindInvalidInput, t.op, "no recipients")
		}
		if len(req.Recipients) != len(req.AmountsMWh) {
			return domain.E(domain.KindInvalidInput, t.op, "arrays length mismatch: %d recipients, %d amounts",
				len(req.Recipients), len(req.AmountsMWh))
		}
		for i, to := range req.Recipients {
			e, err := s.mintOne(t, caller, to, req.AmountsMWh[i], req.FacilityID, req.Metadata, req.GeneratedAt)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Certificates batch minted",
		zap.String("facility_id", req.FacilityID),
		zap.Int("recipients", len(entries)),
	)
	return entries, nil
}

func (s *Service) mintOne(t *txn, caller, to domain.Address, amountMWh uint64, facilityID, metadata string, generatedAt *time.Time) (domain.Entry, error) {
	if to == domain.ZeroAddress {
		return domain.Entry{}, domain.E(domain.KindInvalidRecipient, t.op, "cannot mint to the null account")
	}
	if amountMWh == 0 {
		return domain.Entry{}, domain.E(domain.KindInvalidAmount, t.op, "amount must be positive")
	}
	f, ok := t.facility(facilityID)
	if !ok {
		return domain.Entry{}, domain.E(domain.KindUnknownFacility, t.op, "facility %q not registered", facilityID)
	}
	if !f.Active {
		return domain.Entry{}, domain.E(domain.KindFacilityInactive, t.op, "facility %q is not active", facilityID)
	}
	if generatedAt != nil && generatedAt.After(t.now) {
		return domain.Entry{}, domain.E(domain.KindInvalidInput, t.op, "invalid generation date %s", generatedAt.Format(time.RFC3339))
	}

	units, err := domain.UnitsFromMWh(amountMWh)
	if err != nil {
		return domain.Entry{}, err
	}
	if f.TotalGenerated > math.MaxUint64-amountMWh {
		return domain.Entry{}, domain.E(domain.KindArithmeticOverflow, t.op, "facility %q generation total overflows", facilityID)
	}

	bal := t.balance(to)
	if bal.Active, err = bal.Active.Add(units); err != nil {
		return domain.Entry{}, err
	}
	totals := t.meta.Totals
	if totals.Supply, err = totals.Supply.Add(units); err != nil {
		return domain.Entry{}, err
	}
	if totals.Minted, err = totals.Minted.Add(units); err != nil {
		return domain.Entry{}, err
	}

	f.TotalGenerated += amountMWh
	t.putFacility(f)
	t.putBalance(bal)
	t.meta.Totals = totals

	entry := t.appendEntry(domain.Entry{
		From:        domain.ZeroAddress,
		To:          to,
		Amount:      units,
		Kind:        domain.EntryKindMint,
		FacilityID:  facilityID,
		Metadata:    metadata,
		GeneratedAt: generatedAt,
		Operator:    caller,
	})

	from := domain.ZeroAddress
	recipient := to
	t.emit(domain.Event{Type: domain.EventTransfer, EntryIndex: &entry.Index, From: &from, To: &recipient, Amount: &entry.Amount})
	t.emit(domain.Event{
		Type:       domain.EventMinted,
		EntryIndex: &entry.Index,
		To:         &recipient,
		Amount:     &entry.Amount,
		FacilityID: facilityID,
		EnergyType: string(f.EnergyType),
		AmountMWh:  amountMWh,
	})
	return entry, nil
}

func (s *Service) Transfer(ctx context.Context, caller, from, to domain.Address, amount domain.Amount) (*domain.Entry, error) {
	var entry domain.Entry
	err := s.write(ctx, "Transfer", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if caller != from {
			return domain.E(domain.KindUnauthorized, t.op, "caller %s cannot transfer from %s", caller.Hex(), from.Hex())
		}
		var err error
		entry, err = s.move(t, caller, from, to, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Approve sets the amount spender may move out of the caller's active balance.
func (s *Service) Approve(ctx context.Context, caller, spender domain.Address, amount domain.Amount) error {
	return s.write(ctx, "Approve", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if spender == domain.ZeroAddress {
			return domain.E(domain.KindInvalidRecipient, t.op, "cannot approve the null account")
		}
		t.putAllowance(domain.AllowanceKey{Owner: caller, Spender: spender}, amount)
		owner, sp, amt := caller, spender, amount
		t.emit(domain.Event{Type: domain.EventApproval, From: &owner, To: &sp, Amount: &amt})
		return nil
	})
}

// TransferFrom moves tokens out of from on behalf of the caller, consuming allowance.
func (s *Service) TransferFrom(ctx context.Context, caller, from, to domain.Address, amount domain.Amount) (*domain.Entry, error) {
	var entry domain.Entry
	err := s.write(ctx, "TransferFrom", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if caller != from {
			key := domain.AllowanceKey{Owner: from, Spender: caller}
			remaining, err := t.allowance(key).Sub(amount)
			if err != nil {
				return domain.E(domain.KindInsufficientAllowance, t.op, "allowance of %s over %s is below %s",
					caller.Hex(), from.Hex(), amount)
			}
			t.putAllowance(key, remaining)
		}
		var err error
		entry, err = s.move(t, caller, from, to, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) move(t *txn, caller, from, to domain.Address, amount domain.Amount) (domain.Entry, error) {
	if from == domain.ZeroAddress {
		return domain.Entry{}, domain.E(domain.KindInvalidInput, t.op, "the null account cannot send")
	}
	if to == domain.ZeroAddress {
		return domain.Entry{}, domain.E(domain.KindInvalidRecipient, t.op, "cannot transfer to the null account")
	}
	if amount.IsZero() {
		return domain.Entry{}, domain.E(domain.KindInvalidAmount, t.op, "amount must be positive")
	}

	src := t.balance(from)
	remaining, err := src.Active.Sub(amount)
	if err != nil {
		return domain.Entry{}, domain.E(domain.KindInsufficientBalance, t.op, "%s holds %s, needs %s", from.Hex(), src.Active, amount)
	}
	src.Active = remaining
	t.putBalance(src)

	dst := t.balance(to)
	if dst.Active, err = dst.Active.Add(amount); err != nil {
		return domain.Entry{}, err
	}
	t.putBalance(dst)

	entry := t.appendEntry(domain.Entry{
		From:     from,
		To:       to,
		Amount:   amount,
		Kind:     domain.EntryKindTransfer,
		Operator: caller,
	})
	f, r := from, to
	t.emit(domain.Event{Type: domain.EventTransfer, EntryIndex: &entry.Index, From: &f, To: &r, Amount: &entry.Amount})
	return entry, nil
}

// Retire permanently moves amount from the caller's active to retired balance.
func (s *Service) Retire(ctx context.Context, caller, account domain.Address, amount domain.Amount, reason string) (*domain.Entry, error) {
	var entry domain.Entry
	err := s.write(ctx, "Retire", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if caller != account {
			return domain.E(domain.KindUnauthorized, t.op, "caller %s cannot retire for %s", caller.Hex(), account.Hex())
		}
		if amount.IsZero() {
			return domain.E(domain.KindInvalidAmount, t.op, "amount must be positive")
		}
		if strings.TrimSpace(reason) == "" {
			return domain.E(domain.KindMissingReason, t.op, "retirement reason required")
		}

		bal := t.balance(account)
		remaining, err := bal.Active.Sub(amount)
		if err != nil {
			return domain.E(domain.KindInsufficientBalance, t.op, "%s holds %s, needs %s", account.Hex(), bal.Active, amount)
		}
		bal.Active = remaining
		if bal.Retired, err = bal.Retired.Add(amount); err != nil {
			return err
		}
		totals := t.meta.Totals
		if totals.Supply, err = totals.Supply.Sub(amount); err != nil {
			return err
		}
		if totals.Retired, err = totals.Retired.Add(amount); err != nil {
			return err
		}
		t.putBalance(bal)
		t.meta.Totals = totals

		entry = t.appendEntry(domain.Entry{
			From:     account,
			To:       domain.ZeroAddress,
			Amount:   amount,
			Kind:     domain.EntryKindRetire,
			Metadata: reason,
			Operator: caller,
		})
		from, to := account, domain.ZeroAddress
		t.emit(domain.Event{Type: domain.EventTransfer, EntryIndex: &entry.Index, From: &from, To: &to, Amount: &entry.Amount})
		t.emit(domain.Event{Type: domain.EventRetired, EntryIndex: &entry.Index, Account: &from, Amount: &entry.Amount, Reason: reason})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Certificates retired",
		zap.String("account", account.Hex()),
		zap.String("amount", amount.Tokens().String()),
		zap.String("reason", reason),
	)
	return &entry, nil
}

// Burn destroys active tokens without recording them as retired. The owner
// may burn from any account; holders may burn their own.
func (s *Service) Burn(ctx context.Context, caller, account domain.Address, amount domain.Amount) (*domain.Entry, error) {
	var entry domain.Entry
	err := s.write(ctx, "Burn", caller, func(t *txn) error {
		if err := s.requireNotPaused(t); err != nil {
			return err
		}
		if caller != account && caller != t.meta.Owner {
			return domain.E(domain.KindUnauthorized, t.op, "caller %s cannot burn from %s", caller.Hex(), account.Hex())
		}
		if amount.IsZero() {
			return domain.E(domain.KindInvalidAmount, t.op, "amount must be positive")
		}

		bal := t.balance(account)
		remaining, err := bal.Active.Sub(amount)
		if err != nil {
			return domain.E(domain.KindInsufficientBalance, t.op, "%s holds %s, needs %s", account.Hex(), bal.Active, amount)
		}
		bal.Active = remaining
		totals := t.meta.Totals
		if totals.Supply, err = totals.Supply.Sub(amount); err != nil {
			return err
		}
		if totals.Burned, err = totals.Burned.Add(amount); err != nil {
			return err
		}
		t.putBalance(bal)
		t.meta.Totals = totals

		entry = t.appendEntry(domain.Entry{
			From:     account,
			To:       domain.ZeroAddress,
			Amount:   amount,
			Kind:     domain.EntryKindBurn,
			Operator: caller,
		})
		from, to := account, domain.ZeroAddress
		t.emit(domain.Event{Type: domain.EventTransfer, EntryIndex: &entry.Index, From: &from, To: &to, Amount: &entry.Amount})
		t.emit(domain.Event{Type: domain.EventBurned, EntryIndex: &entry.Index, Account: &from, Amount: &entry.Amount})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Certificates burned",
		zap.String("account", account.Hex()),
		zap.String("operator", caller.Hex()),
		zap.String("amount", amount.Tokens().String()),
	)
	return &entry, nil
}

func (s *Service) BalanceOf(ctx context.Context, account domain.Address) domain.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[account].Active
}

func (s *Service) RetiredBalanceOf(ctx context.Context, account domain.Address) domain.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[account].Retired
}

func (s *Service) Allowance(ctx context.Context, owner, spender domain.Address) domain.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.allowances[domain.AllowanceKey{Owner: owner, Spender: spender}]
}

func (s *Service) Totals(ctx context.Context) domain.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.meta.Totals
}

func (s *Service) TotalSupply(ctx context.Context) domain.Amount {
	return s.Totals(ctx).Supply
}

func (s *Service) TotalRetired(ctx context.Context) domain.Amount {
	return s.Totals(ctx).Retired
}
