package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

// LedgerStore persists ledger changesets with gorm. Every Commit runs in one
// database transaction together with the outbox rows for its events.
type LedgerStore struct {
	db     *gorm.DB
	log    *zap.Logger
	outbox bool
	now    func() time.Time
}

var (
	_ ports.LedgerStore = (*LedgerStore)(nil)
	_ ports.OutboxStore = (*LedgerStore)(nil)
)

type StoreOption func(*LedgerStore)

// WithOutbox makes Commit write emitted events to rec_outbox for the relay.
func WithOutbox(enabled bool) StoreOption {
	return func(s *LedgerStore) { s.outbox = enabled }
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *LedgerStore) { s.now = now }
}

func NewLedgerStore(db *gorm.DB, log *zap.Logger, opts ...StoreOption) *LedgerStore {
	s := &LedgerStore{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	db := s.db.WithContext(ctx)

	var meta metaRow
	if err := db.First(&meta, "id = ?", 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load ledger meta: %w", err)
	}
	snap := &domain.Snapshot{Meta: meta.toDomain()}

	var facilities []facilityRow
	if err := db.Order("ordinal").Find(&facilities).Error; err != nil {
		return nil, fmt.Errorf("load facilities: %w", err)
	}
	for _, r := range facilities {
		f, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		snap.Facilities = append(snap.Facilities, f)
	}

	var balances []balanceRow
	if err := db.Order("account").Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	for _, r := range balances {
		snap.Balances = append(snap.Balances, domain.Balance{
			Account: common.HexToAddress(r.Account),
			Active:  r.Active,
			Retired: r.Retired,
		})
	}

	var allowances []allowanceRow
	if err := db.Find(&allowances).Error; err != nil {
		return nil, fmt.Errorf("load allowances: %w", err)
	}
	for _, r := range allowances {
		snap.Allowances = append(snap.Allowances, domain.Allowance{
			Owner:   common.HexToAddress(r.Owner),
			Spender: common.HexToAddress(r.Spender),
			Amount:  r.Amount,
		})
	}

	var entries []entryRow
	if err := db.Order("idx").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	for _, r := range entries {
		snap.Entries = append(snap.Entries, r.toDomain())
	}

	s.log.Info("Ledger snapshot loaded",
		zap.Int("facilities", len(snap.Facilities)),
		zap.Int("accounts", len(snap.Balances)),
		zap.Int("entries", len(snap.Entries)),
	)
	return snap, nil
}

func (s *LedgerStore) Commit(ctx context.Context, cs *domain.Changeset) error {
	now := s.now()

	outbox, err := s.outboxRows(cs.Events, now)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta := toMetaRow(cs.Meta, now)
		if err := upsert(tx, &meta).Error; err != nil {
			return fmt.Errorf("upsert meta: %w", err)
		}

		if len(cs.Facilities) > 0 {
			rows := make([]facilityRow, 0, len(cs.Facilities))
			for _, f := range cs.Facilities {
				rows = append(rows, toFacilityRow(f))
			}
			if err := upsert(tx, &rows).Error; err != nil {
				return fmt.Errorf("upsert facilities: %w", err)
			}
		}

		if len(cs.Balances) > 0 {
			rows := make([]balanceRow, 0, len(cs.Balances))
			for _, b := range cs.Balances {
				rows = append(rows, balanceRow{Account: b.Account.Hex(), Active: b.Active, Retired: b.Retired})
			}
			if err := upsert(tx, &rows).Error; err != nil {
				return fmt.Errorf("upsert balances: %w", err)
			}
		}

		for _, a := range cs.Allowances {
			row := allowanceRow{Owner: a.Owner.Hex(), Spender: a.Spender.Hex(), Amount: a.Amount}
			if a.Amount.IsZero() {
				if err := tx.Where("owner = ? AND spender = ?", row.Owner, row.Spender).Delete(&allowanceRow{}).Error; err != nil {
					return fmt.Errorf("delete allowance: %w", err)
				}
				continue
			}
			if err := upsert(tx, &row).Error; err != nil {
				return fmt.Errorf("upsert allowance: %w", err)
			}
		}

		if len(cs.Entries) > 0 {
			rows := make([]entryRow, 0, len(cs.Entries))
			for _, e := range cs.Entries {
				rows = append(rows, toEntryRow(e))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("append entries: %w", err)
			}
		}

		if len(outbox) > 0 {
			if err := tx.Create(&outbox).Error; err != nil {
				return fmt.Errorf("write outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("Ledger commit failed", zap.Error(err))
		return err
	}
	return nil
}

// upsert inserts value, overwriting rows with the same primary key. A fresh
// statement is needed per call.
func upsert(tx *gorm.DB, value interface{}) *gorm.DB {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(value)
}

func (s *LedgerStore) outboxRows(events []domain.Event, now time.Time) ([]outboxRow, error) {
	if !s.outbox {
		return nil, nil
	}
	rows := make([]outboxRow, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		rows = append(rows, outboxRow{
			EventID:   e.ID,
			Subject:   e.Subject(),
			Payload:   payload,
			CreatedAt: now,
		})
	}
	return rows, nil
}

func (s *LedgerStore) FetchPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxMessage, error) {
	var rows []outboxRow
	q := s.db.WithContext(ctx).Where("published_at IS NULL").Order("id")
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	out := make([]domain.OutboxMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *LedgerStore) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&outboxRow{}).
		Where("id IN ?", ids).
		Update("published_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (s *LedgerStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := s.db.WithContext(ctx).Model(&outboxRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

// Ping is used by the readiness check.
func (s *LedgerStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *LedgerStore) Close() error {
	return Close(s.db)
}
