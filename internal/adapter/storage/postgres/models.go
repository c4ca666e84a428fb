package postgres

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/voltx/rec-hub/internal/domain"
)

// Uint64 columns are stored as numeric(20,0) text because database/sql
// cannot carry values with the high bit set.

type metaRow struct {
	ID        int           `gorm:"primaryKey;autoIncrement:false"`
	Owner     string        `gorm:"size:42;not null"`
	Paused    bool          `gorm:"not null"`
	Supply    domain.Amount `gorm:"type:numeric(78,0);not null"`
	Minted    domain.Amount `gorm:"type:numeric(78,0);not null"`
	Retired   domain.Amount `gorm:"type:numeric(78,0);not null"`
	Burned    domain.Amount `gorm:"type:numeric(78,0);not null"`
	UpdatedAt time.Time
}

func (metaRow) TableName() string { return "rec_ledger_meta" }

type facilityRow struct {
	ID             string    `gorm:"primaryKey;size:128"`
	Ordinal        int       `gorm:"not null;uniqueIndex"`
	DisplayName    string    `gorm:"not null"`
	Location       string    `gorm:"not null"`
	EnergyType     string    `gorm:"size:32;not null"`
	Capacity       string    `gorm:"type:numeric(20,0);not null"`
	Active         bool      `gorm:"not null"`
	TotalGenerated string    `gorm:"type:numeric(20,0);not null"`
	RegisteredAt   time.Time `gorm:"not null"`
	RegisteredBy   string    `gorm:"size:42;not null"`
}

func (facilityRow) TableName() string { return "rec_facilities" }

type balanceRow struct {
	Account string        `gorm:"primaryKey;size:42"`
	Active  domain.Amount `gorm:"type:numeric(78,0);not null"`
	Retired domain.Amount `gorm:"type:numeric(78,0);not null"`
}

func (balanceRow) TableName() string { return "rec_balances" }

type allowanceRow struct {
	Owner   string        `gorm:"primaryKey;size:42"`
	Spender string        `gorm:"primaryKey;size:42"`
	Amount  domain.Amount `gorm:"type:numeric(78,0);not null"`
}

func (allowanceRow) TableName() string { return "rec_allowances" }

type entryRow struct {
	Idx         uint64        `gorm:"column:idx;primaryKey;autoIncrement:false"`
	FromAccount string        `gorm:"size:42;not null;index"`
	ToAccount   string        `gorm:"size:42;not null;index"`
	Amount      domain.Amount `gorm:"type:numeric(78,0);not null"`
	Kind        string        `gorm:"size:16;not null"`
	FacilityID  string        `gorm:"size:128"`
	Timestamp   time.Time     `gorm:"not null"`
	Metadata    string        `gorm:"type:text"`
	GeneratedAt *time.Time
	Operator    string `gorm:"size:42;not null"`
}

func (entryRow) TableName() string { return "rec_entries" }

type outboxRow struct {
	ID          int64      `gorm:"primaryKey"`
	EventID     string     `gorm:"size:36;not null;uniqueIndex"`
	Subject     string     `gorm:"size:128;not null"`
	Payload     []byte     `gorm:"type:jsonb;not null"`
	Attempts    int        `gorm:"not null"`
	LastError   string     `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"not null"`
	PublishedAt *time.Time `gorm:"index"`
}

func (outboxRow) TableName() string { return "rec_outbox" }

func toMetaRow(m domain.LedgerMeta, now time.Time) metaRow {
	return metaRow{
		ID:        1,
		Owner:     m.Owner.Hex(),
		Paused:    m.Paused,
		Supply:    m.Totals.Supply,
		Minted:    m.Totals.Minted,
		Retired:   m.Totals.Retired,
		Burned:    m.Totals.Burned,
		UpdatedAt: now,
	}
}

func (r metaRow) toDomain() domain.LedgerMeta {
	return domain.LedgerMeta{
		Owner:  common.HexToAddress(r.Owner),
		Paused: r.Paused,
		Totals: domain.Totals{
			Supply:  r.Supply,
			Minted:  r.Minted,
			Retired: r.Retired,
			Burned:  r.Burned,
		},
	}
}

func toFacilityRow(f domain.Facility) facilityRow {
	return facilityRow{
		ID:             f.ID,
		Ordinal:        f.Ordinal,
		DisplayName:    f.DisplayName,
		Location:       f.Location,
		EnergyType:     string(f.EnergyType),
		Capacity:       strconv.FormatUint(f.Capacity, 10),
		Active:         f.Active,
		TotalGenerated: strconv.FormatUint(f.TotalGenerated, 10),
		RegisteredAt:   f.RegisteredAt,
		RegisteredBy:   f.RegisteredBy.Hex(),
	}
}

func (r facilityRow) toDomain() (domain.Facility, error) {
	capacity, err := strconv.ParseUint(r.Capacity, 10, 64)
	if err != nil {
		return domain.Facility{}, fmt.Errorf("facility %s capacity: %w", r.ID, err)
	}
	generated, err := strconv.ParseUint(r.TotalGenerated, 10, 64)
	if err != nil {
		return domain.Facility{}, fmt.Errorf("facility %s total_generated: %w", r.ID, err)
	}
	return domain.Facility{
		ID:             r.ID,
		Ordinal:        r.Ordinal,
		DisplayName:    r.DisplayName,
		Location:       r.Location,
		EnergyType:     domain.EnergyType(r.EnergyType),
		Capacity:       capacity,
		Active:         r.Active,
		TotalGenerated: generated,
		RegisteredAt:   r.RegisteredAt.UTC(),
		RegisteredBy:   common.HexToAddress(r.RegisteredBy),
	}, nil
}

func toEntryRow(e domain.Entry) entryRow {
	return entryRow{
		Idx:         e.Index,
		FromAccount: e.From.Hex(),
		ToAccount:   e.To.Hex(),
		Amount:      e.Amount,
		Kind:        string(e.Kind),
		FacilityID:  e.FacilityID,
		Timestamp:   e.Timestamp,
		Metadata:    e.Metadata,
		GeneratedAt: e.GeneratedAt,
		Operator:    e.Operator.Hex(),
	}
}

func (r entryRow) toDomain() domain.Entry {
	e := domain.Entry{
		Index:      r.Idx,
		From:       common.HexToAddress(r.FromAccount),
		To:         common.HexToAddress(r.ToAccount),
		Amount:     r.Amount,
		Kind:       domain.EntryKind(r.Kind),
		FacilityID: r.FacilityID,
		Timestamp:  r.Timestamp.UTC(),
		Metadata:   r.Metadata,
		Operator:   common.HexToAddress(r.Operator),
	}
	if r.GeneratedAt != nil {
		g := r.GeneratedAt.UTC()
		e.GeneratedAt = &g
	}
	return e
}

func (r outboxRow) toDomain() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:        r.ID,
		EventID:   r.EventID,
		Subject:   r.Subject,
		Payload:   r.Payload,
		Attempts:  r.Attempts,
		CreatedAt: r.CreatedAt,
	}
}
