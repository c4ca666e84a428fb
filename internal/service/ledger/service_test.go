package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/storage/memory"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) OnEvents(_ context.Context, events []domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestLedger(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(zap.NewNop())
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := NewService(Config{InitialOwner: owner}, store, zap.NewNop(), opts...)
	require.NoError(t, svc.Restore(context.Background()))
	return svc, store
}

func units(t *testing.T, mwh uint64) domain.Amount {
	t.Helper()
	a, err := domain.UnitsFromMWh(mwh)
	require.NoError(t, err)
	return a
}

func facilityRequest(id, energyType string) domain.RegisterFacilityRequest {
	return domain.RegisterFacilityRequest{
		ID:          id,
		DisplayName: id + " plant",
		Location:    "Recife, BR",
		EnergyType:  energyType,
		Capacity:    10,
	}
}

func registerSolar(t *testing.T, svc *Service) {
	t.Helper()
	_, err := svc.RegisterFacility(context.Background(), owner, domain.RegisterFacilityRequest{
		ID:          "SOLAR-001",
		DisplayName: "Sunfield Array",
		Location:    "Fortaleza, BR",
		EnergyType:  "solar",
		Capacity:    50,
	})
	require.NoError(t, err)
}

func TestMintTransferRetire_Scenario(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)

	// Act
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 100, FacilityID: "SOLAR-001", Metadata: "batch-2024-05"})
	require.NoError(t, err)

	f, err := svc.GetFacility(ctx, "SOLAR-001")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), f.TotalGenerated)
	assert.Equal(t, units(t, 100), svc.BalanceOf(ctx, alice))

	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 40))
	require.NoError(t, err)
	_, err = svc.Retire(ctx, alice, alice, units(t, 20), "2024 offset")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, units(t, 40), svc.BalanceOf(ctx, alice))
	assert.Equal(t, units(t, 20), svc.RetiredBalanceOf(ctx, alice))
	assert.Equal(t, units(t, 40), svc.BalanceOf(ctx, bob))
	assert.Equal(t, units(t, 80), svc.TotalSupply(ctx))
	assert.Equal(t, units(t, 20), svc.TotalRetired(ctx))

	require.Equal(t, uint64(3), svc.EntryCount(ctx))
	kinds := []domain.EntryKind{}
	for i := uint64(0); i < svc.EntryCount(ctx); i++ {
		e, err := svc.GetEntry(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, i, e.Index)
		assert.Equal(t, fixedNow, e.Timestamp)
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []domain.EntryKind{domain.EntryKindMint, domain.EntryKindTransfer, domain.EntryKindRetire}, kinds)

	retire, err := svc.GetEntry(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "2024 offset", retire.Metadata)
	assert.Equal(t, domain.ZeroAddress, retire.To)

	assert.Equal(t, []uint64{0, 1, 2}, svc.AccountEntryIndices(ctx, alice))
	assert.Equal(t, []uint64{1}, svc.AccountEntryIndices(ctx, bob))
	assert.Empty(t, svc.AccountEntryIndices(ctx, domain.ZeroAddress))
}

func TestPauseBlocksTokenOperations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 10, FacilityID: "SOLAR-001"})
	require.NoError(t, err)

	require.NoError(t, svc.Pause(ctx, owner))
	assert.True(t, svc.Paused(ctx))

	_, err = svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 1, FacilityID: "SOLAR-001"})
	assert.ErrorIs(t, err, domain.ErrSystemPaused)
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 1))
	assert.ErrorIs(t, err, domain.ErrSystemPaused)
	_, err = svc.Retire(ctx, alice, alice, units(t, 1), "offset")
	assert.ErrorIs(t, err, domain.ErrSystemPaused)
	_, err = svc.Burn(ctx, alice, alice, units(t, 1))
	assert.ErrorIs(t, err, domain.ErrSystemPaused)
	assert.ErrorIs(t, svc.Pause(ctx, owner), domain.ErrSystemPaused)

	// Registry and reads stay available while paused.
	_, err = svc.SetFacilityActive(ctx, owner, "SOLAR-001", false)
	require.NoError(t, err)
	assert.Equal(t, units(t, 10), svc.BalanceOf(ctx, alice))

	require.NoError(t, svc.Unpause(ctx, owner))
	assert.ErrorIs(t, svc.Unpause(ctx, owner), domain.ErrInvalidInput)
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 1))
	require.NoError(t, err)
}

func TestOwnerOnlyOperations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)

	_, err := svc.RegisterFacility(ctx, alice, facilityRequest("WIND-001", "Wind"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.SetFacilityActive(ctx, alice, "SOLAR-001", false)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Mint(ctx, alice, domain.MintRequest{To: alice, AmountMWh: 1, FacilityID: "SOLAR-001"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, svc.Pause(ctx, alice), domain.ErrUnauthorized)
	assert.ErrorIs(t, svc.TransferOwnership(ctx, alice, alice), domain.ErrUnauthorized)

	assert.Equal(t, uint64(0), svc.EntryCount(ctx))
}

func TestRegisterFacility_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)

	without := func(edit func(*domain.RegisterFacilityRequest)) domain.RegisterFacilityRequest {
		req := facilityRequest("X-1", "Solar")
		edit(&req)
		return req
	}

	tests := []struct {
		name    string
		req     domain.RegisterFacilityRequest
		wantErr error
	}{
		{"duplicate id", facilityRequest("SOLAR-001", "Wind"), domain.ErrDuplicateFacility},
		{"empty id", without(func(r *domain.RegisterFacilityRequest) { r.ID = "  " }), domain.ErrInvalidInput},
		{"unknown energy type", without(func(r *domain.RegisterFacilityRequest) { r.EnergyType = "coal" }), domain.ErrInvalidInput},
		{"empty energy type", without(func(r *domain.RegisterFacilityRequest) { r.EnergyType = "" }), domain.ErrInvalidInput},
		{"zero capacity", without(func(r *domain.RegisterFacilityRequest) { r.Capacity = 0 }), domain.ErrInvalidInput},
		{"empty display name", without(func(r *domain.RegisterFacilityRequest) { r.DisplayName = "" }), domain.ErrInvalidInput},
		{"blank display name", without(func(r *domain.RegisterFacilityRequest) { r.DisplayName = " \t" }), domain.ErrInvalidInput},
		{"empty location", without(func(r *domain.RegisterFacilityRequest) { r.Location = "" }), domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterFacility(ctx, owner, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected registrations leave the registry untouched.
	assert.Equal(t, 1, svc.FacilityCount(ctx))
	original, err := svc.GetFacility(ctx, "SOLAR-001")
	require.NoError(t, err)
	assert.Equal(t, "Sunfield Array", original.DisplayName)
	assert.Equal(t, domain.EnergyTypeSolar, original.EnergyType)
	assert.Equal(t, uint64(50), original.Capacity)
	assert.Equal(t, uint64(0), svc.EntryCount(ctx))

	_, err = svc.RegisterFacility(ctx, owner, facilityRequest("WIND-001", "Wind"))
	require.NoError(t, err)
	_, err = svc.RegisterFacility(ctx, owner, facilityRequest("HYDRO-001", "HYDRO"))
	require.NoError(t, err)

	assert.Equal(t, 3, svc.FacilityCount(ctx))
	assert.Equal(t, []string{"SOLAR-001", "WIND-001", "HYDRO-001"}, svc.ListFacilityIDs(ctx))

	_, err = svc.GetFacility(ctx, "GEO-404")
	assert.ErrorIs(t, err, domain.ErrUnknownFacility)
}

func TestRegisterFacility_EventCarriesFacility(t *testing.T) {
	// Arrange
	ctx := context.Background()
	rec := &recorder{}
	svc, _ := newTestLedger(t, WithListeners(rec))

	// Act
	registerSolar(t, svc)
	_, err := svc.SetFacilityActive(ctx, owner, "SOLAR-001", false)
	require.NoError(t, err)

	// Assert
	require.Equal(t, []domain.EventType{domain.EventFacilityRegistered, domain.EventFacilityStatusChanged}, rec.types())

	registered := rec.events[0].Facility
	require.NotNil(t, registered)
	assert.Equal(t, domain.Facility{
		ID:           "SOLAR-001",
		DisplayName:  "Sunfield Array",
		Location:     "Fortaleza, BR",
		EnergyType:   domain.EnergyTypeSolar,
		Capacity:     50,
		Active:       true,
		RegisteredAt: fixedNow,
		RegisteredBy: owner,
	}, *registered)

	changed := rec.events[1].Facility
	require.NotNil(t, changed)
	assert.False(t, changed.Active)
	assert.Equal(t, "Fortaleza, BR", changed.Location)
	assert.True(t, registered.Active, "registration payload must not change afterwards")
}

func TestMint_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.RegisterFacility(ctx, owner, facilityRequest("WIND-OFF", "Wind"))
	require.NoError(t, err)
	_, err = svc.ToggleFacilityStatus(ctx, owner, "WIND-OFF")
	require.NoError(t, err)

	future := fixedNow.Add(time.Hour)
	past := fixedNow.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		req     domain.MintRequest
		wantErr error
	}{
		{"unknown facility", domain.MintRequest{To: alice, AmountMWh: 1, FacilityID: "NOPE"}, domain.ErrUnknownFacility},
		{"inactive facility", domain.MintRequest{To: alice, AmountMWh: 1, FacilityID: "WIND-OFF"}, domain.ErrFacilityInactive},
		{"null recipient", domain.MintRequest{To: domain.ZeroAddress, AmountMWh: 1, FacilityID: "SOLAR-001"}, domain.ErrInvalidRecipient},
		{"zero amount", domain.MintRequest{To: alice, AmountMWh: 0, FacilityID: "SOLAR-001"}, domain.ErrInvalidAmount},
		{"future generation date", domain.MintRequest{To: alice, AmountMWh: 1, FacilityID: "SOLAR-001", GeneratedAt: &future}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Mint(ctx, owner, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, uint64(0), svc.EntryCount(ctx))

	e, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 5, FacilityID: "SOLAR-001", GeneratedAt: &past})
	require.NoError(t, err)
	require.NotNil(t, e.GeneratedAt)
	assert.Equal(t, past, *e.GeneratedAt)
}

func TestMint_OverflowIsRejectedAtomically(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)

	// 2^256 / 10^18 is about 1.16e59, far above MaxUint64, so force the
	// overflow through the facility generation counter instead.
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: ^uint64(0), FacilityID: "SOLAR-001"})
	require.NoError(t, err)
	_, err = svc.Mint(ctx, owner, domain.MintRequest{To: bob, AmountMWh: 1, FacilityID: "SOLAR-001"})
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	assert.True(t, svc.BalanceOf(ctx, bob).IsZero())
	assert.Equal(t, uint64(1), svc.EntryCount(ctx))
}

func TestBatchMint(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)

	_, err := svc.BatchMint(ctx, owner, domain.BatchMintRequest{
		Recipients: []domain.Address{alice, bob},
		AmountsMWh: []uint64{1},
		FacilityID: "SOLAR-001",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// A bad recipient anywhere aborts the whole batch.
	_, err = svc.BatchMint(ctx, owner, domain.BatchMintRequest{
		Recipients: []domain.Address{alice, domain.ZeroAddress},
		AmountsMWh: []uint64{1, 2},
		FacilityID: "SOLAR-001",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	assert.True(t, svc.BalanceOf(ctx, alice).IsZero())

	entries, err := svc.BatchMint(ctx, owner, domain.BatchMintRequest{
		Recipients: []domain.Address{alice, bob, carol},
		AmountsMWh: []uint64{10, 20, 30},
		FacilityID: "SOLAR-001",
		Metadata:   "May 2024",
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint64{0, 1, 2}, []uint64{entries[0].Index, entries[1].Index, entries[2].Index})

	f, err := svc.GetFacility(ctx, "SOLAR-001")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), f.TotalGenerated)
	assert.Equal(t, units(t, 60), svc.TotalSupply(ctx))
	assert.Equal(t, units(t, 20), svc.BalanceOf(ctx, bob))
}

func TestTransfer_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 5, FacilityID: "SOLAR-001"})
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, bob, alice, bob, units(t, 1))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Transfer(ctx, alice, alice, domain.ZeroAddress, units(t, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	_, err = svc.Transfer(ctx, alice, alice, bob, domain.Amount{})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 6))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Equal(t, units(t, 5), svc.BalanceOf(ctx, alice))
	assert.Equal(t, uint64(1), svc.EntryCount(ctx))
}

func TestRetire_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 5, FacilityID: "SOLAR-001"})
	require.NoError(t, err)

	_, err = svc.Retire(ctx, alice, alice, units(t, 1), "   ")
	assert.ErrorIs(t, err, domain.ErrMissingReason)
	_, err = svc.Retire(ctx, alice, alice, units(t, 6), "offset")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, err = svc.Retire(ctx, bob, alice, units(t, 1), "offset")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.True(t, svc.TotalRetired(ctx).IsZero())
	assert.Equal(t, uint64(1), svc.EntryCount(ctx))
}

func TestBurn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 10, FacilityID: "SOLAR-001"})
	require.NoError(t, err)

	_, err = svc.Burn(ctx, bob, alice, units(t, 1))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Burn(ctx, alice, alice, units(t, 2))
	require.NoError(t, err)
	e, err := svc.Burn(ctx, owner, alice, units(t, 3))
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindBurn, e.Kind)
	assert.Equal(t, owner, e.Operator)

	totals := svc.Totals(ctx)
	assert.Equal(t, units(t, 5), totals.Supply)
	assert.Equal(t, units(t, 5), totals.Burned)
	assert.True(t, totals.Retired.IsZero())
	assert.True(t, svc.RetiredBalanceOf(ctx, alice).IsZero())
}

func TestApproveAndTransferFrom(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 10, FacilityID: "SOLAR-001"})
	require.NoError(t, err)

	_, err = svc.TransferFrom(ctx, bob, alice, carol, units(t, 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientAllowance)

	require.NoError(t, svc.Approve(ctx, alice, bob, units(t, 4)))
	assert.Equal(t, units(t, 4), svc.Allowance(ctx, alice, bob))

	e, err := svc.TransferFrom(ctx, bob, alice, carol, units(t, 3))
	require.NoError(t, err)
	assert.Equal(t, bob, e.Operator)
	assert.Equal(t, alice, e.From)
	assert.Equal(t, units(t, 1), svc.Allowance(ctx, alice, bob))
	assert.Equal(t, units(t, 3), svc.BalanceOf(ctx, carol))

	_, err = svc.TransferFrom(ctx, bob, alice, carol, units(t, 2))
	assert.ErrorIs(t, err, domain.ErrInsufficientAllowance)
	assert.Equal(t, units(t, 1), svc.Allowance(ctx, alice, bob))
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)

	assert.ErrorIs(t, svc.TransferOwnership(ctx, owner, domain.ZeroAddress), domain.ErrInvalidRecipient)
	require.NoError(t, svc.TransferOwnership(ctx, owner, carol))
	assert.Equal(t, carol, svc.Owner(ctx))

	_, err := svc.RegisterFacility(ctx, owner, facilityRequest("SOLAR-002", "Solar"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.RegisterFacility(ctx, carol, facilityRequest("SOLAR-002", "Solar"))
	require.NoError(t, err)
}

func TestCertificate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 7, FacilityID: "SOLAR-001", Metadata: "inverter log 42"})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 1))
	require.NoError(t, err)

	cert, err := svc.Certificate(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "SOLAR-001", cert.Facility.ID)
	assert.Equal(t, domain.EnergyTypeSolar, cert.Facility.EnergyType)
	assert.Equal(t, "inverter log 42", cert.Entry.Metadata)

	_, err = svc.Certificate(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Certificate(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrUnknownEntry)
	_, err = svc.GetEntry(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrUnknownEntry)
}

func TestListEntries_Paging(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	for i := 0; i < 5; i++ {
		_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 1, FacilityID: "SOLAR-001"})
		require.NoError(t, err)
	}

	page := svc.ListEntries(ctx, 3, 10)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].Index)
	assert.Empty(t, svc.ListEntries(ctx, 5, 10))
	assert.Len(t, svc.ListEntries(ctx, 0, 2), 2)
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	// Arrange
	ctx := context.Background()
	rec := &recorder{}
	svc, store := newTestLedger(t, WithListeners(rec))
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 10, FacilityID: "SOLAR-001"})
	require.NoError(t, err)
	before := len(rec.types())

	storeErr := errors.New("disk full")
	store.CommitFunc = func(*domain.Changeset) error { return storeErr }

	// Act
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 4))

	// Assert
	require.ErrorIs(t, err, storeErr)
	assert.Equal(t, units(t, 10), svc.BalanceOf(ctx, alice))
	assert.True(t, svc.BalanceOf(ctx, bob).IsZero())
	assert.Equal(t, uint64(1), svc.EntryCount(ctx))
	assert.Len(t, rec.types(), before)

	store.CommitFunc = nil
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 4))
	require.NoError(t, err)
	e, err := svc.GetEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryKindTransfer, e.Kind)
}

func TestListenersReceiveEventsInCommitOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc, _ := newTestLedger(t)

	var observedSupply []string
	svc.Subscribe(rec)
	svc.Subscribe(ports.EventListenerFunc(func(ctx context.Context, events []domain.Event) {
		// Listeners may read the ledger while being notified.
		observedSupply = append(observedSupply, svc.TotalSupply(ctx).String())
	}))

	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 3, FacilityID: "SOLAR-001"})
	require.NoError(t, err)
	_, err = svc.Retire(ctx, alice, alice, units(t, 1), "Scope 2")
	require.NoError(t, err)
	require.NoError(t, svc.Pause(ctx, owner))

	assert.Equal(t, []domain.EventType{
		domain.EventFacilityRegistered,
		domain.EventTransfer, domain.EventMinted,
		domain.EventTransfer, domain.EventRetired,
		domain.EventPaused,
	}, rec.types())
	assert.Equal(t, []string{"0", units(t, 3).String(), units(t, 2).String(), units(t, 2).String()}, observedSupply)

	for _, e := range rec.events {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, fixedNow, e.OccurredAt)
	}
}

func TestListenerPanicDoesNotBreakLedger(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc, _ := newTestLedger(t, WithListeners(
		ports.EventListenerFunc(func(context.Context, []domain.Event) { panic("boom") }),
		rec,
	))

	registerSolar(t, svc)

	assert.Equal(t, []domain.EventType{domain.EventFacilityRegistered}, rec.types())
	assert.Equal(t, 1, svc.FacilityCount(ctx))
}

func TestRestoreRebuildsState(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t)
	registerSolar(t, svc)
	_, err := svc.Mint(ctx, owner, domain.MintRequest{To: alice, AmountMWh: 9, FacilityID: "SOLAR-001"})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, alice, alice, bob, units(t, 4))
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, bob, carol, units(t, 2)))
	_, err = svc.Retire(ctx, bob, bob, units(t, 1), "offset")
	require.NoError(t, err)
	require.NoError(t, svc.Pause(ctx, owner))

	restored := NewService(Config{InitialOwner: carol}, store, zap.NewNop())
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, owner, restored.Owner(ctx), "persisted owner wins over configured initial owner")
	assert.True(t, restored.Paused(ctx))
	assert.Equal(t, svc.Totals(ctx), restored.Totals(ctx))
	assert.Equal(t, svc.BalanceOf(ctx, alice), restored.BalanceOf(ctx, alice))
	assert.Equal(t, svc.RetiredBalanceOf(ctx, bob), restored.RetiredBalanceOf(ctx, bob))
	assert.Equal(t, units(t, 2), restored.Allowance(ctx, bob, carol))
	assert.Equal(t, svc.EntryCount(ctx), restored.EntryCount(ctx))
	assert.Equal(t, svc.AccountEntryIndices(ctx, bob), restored.AccountEntryIndices(ctx, bob))
	assert.Equal(t, svc.ListFacilities(ctx), restored.ListFacilities(ctx))
}

func TestRestoreRequiresOwnerOnEmptyStore(t *testing.T) {
	svc := NewService(Config{}, memory.NewStore(zap.NewNop()), newTestLogger())
	assert.Error(t, svc.Restore(context.Background()))
}

func TestTokenInfo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)

	info := svc.TokenInfo(ctx)
	assert.Equal(t, DefaultName, info.Name)
	assert.Equal(t, DefaultSymbol, info.Symbol)
	assert.Equal(t, 18, info.Decimals)
	assert.Equal(t, owner, info.Owner)
	assert.Equal(t, 1, info.FacilityCount)
}

func TestConcurrentTransfersConserveSupply(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	registerSolar(t, svc)
	holders := []domain.Address{alice, bob, carol}
	for _, h := range holders {
		_, err := svc.Mint(ctx, owner, domain.MintRequest{To: h, AmountMWh: 100, FacilityID: "SOLAR-001"})
		require.NoError(t, err)
	}

	amounts := make([]domain.Amount, 7)
	for i := range amounts {
		amounts[i] = units(t, uint64(i+1))
	}
	one := units(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := holders[i%3]
			to := holders[(i+1)%3]
			_, _ = svc.Transfer(ctx, from, from, to, amounts[i%7])
			if i%5 == 0 {
				_, _ = svc.Retire(ctx, from, from, one, "concurrent offset")
			}
		}(i)
	}
	wg.Wait()

	sum := domain.Amount{}
	for _, h := range holders {
		var err error
		sum, err = sum.Add(svc.BalanceOf(ctx, h))
		require.NoError(t, err)
	}
	totals := svc.Totals(ctx)
	assert.Equal(t, totals.Supply, sum)
	require.NoError(t, checkConservation(totals))

	for i := uint64(0); i < svc.EntryCount(ctx); i++ {
		e, err := svc.GetEntry(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, i, e.Index)
	}
}
