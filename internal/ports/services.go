package ports

import (
	"context"

	"github.com/voltx/rec-hub/internal/domain"
)

// LedgerService is the REC ledger: facility registry, token balances,
// transaction log and the admin controls gating them. Every write takes the
// authenticated caller and is applied all-or-nothing.
type LedgerService interface {
	// Facility registry
	RegisterFacility(ctx context.Context, caller domain.Address, req domain.RegisterFacilityRequest) (*domain.Facility, error)
	SetFacilityActive(ctx context.Context, caller domain.Address, id string, active bool) (*domain.Facility, error)
	ToggleFacilityStatus(ctx context.Context, caller domain.Address, id string) (*domain.Facility, error)
	GetFacility(ctx context.Context, id string) (*domain.Facility, error)
	FacilityCount(ctx context.Context) int
	ListFacilityIDs(ctx context.Context) []string
	ListFacilities(ctx context.Context) []domain.Facility

	// Token ledger
	Mint(ctx context.Context, caller domain.Address, req domain.MintRequest) (*domain.Entry, error)
	BatchMint(ctx context.Context, caller domain.Address, req domain.BatchMintRequest) ([]domain.Entry, error)
	Transfer(ctx context.Context, caller, from, to domain.Address, amount domain.Amount) (*domain.Entry, error)
	Approve(ctx context.Context, caller, spender domain.Address, amount domain.Amount) error
	TransferFrom(ctx context.Context, caller, from, to domain.Address, amount domain.Amount) (*domain.Entry, error)
	Retire(ctx context.Context, caller, account domain.Address, amount domain.Amount, reason string) (*domain.Entry, error)
	Burn(ctx context.Context, caller, account domain.Address, amount domain.Amount) (*domain.Entry, error)
	BalanceOf(ctx context.Context, account domain.Address) domain.Amount
	RetiredBalanceOf(ctx context.Context, account domain.Address) domain.Amount
	Allowance(ctx context.Context, owner, spender domain.Address) domain.Amount
	Totals(ctx context.Context) domain.Totals
	TotalSupply(ctx context.Context) domain.Amount
	TotalRetired(ctx context.Context) domain.Amount

	// Transaction log
	GetEntry(ctx context.Context, index uint64) (*domain.Entry, error)
	EntryCount(ctx context.Context) uint64
	AccountEntryIndices(ctx context.Context, account domain.Address) []uint64
	ListEntries(ctx context.Context, offset, limit uint64) []domain.Entry
	Certificate(ctx context.Context, index uint64) (*domain.Certificate, error)

	// Admin
	Pause(ctx context.Context, caller domain.Address) error
	Unpause(ctx context.Context, caller domain.Address) error
	Paused(ctx context.Context) bool
	Owner(ctx context.Context) domain.Address
	TransferOwnership(ctx context.Context, caller, newOwner domain.Address) error
	TokenInfo(ctx context.Context) domain.TokenInfo
}

// AuthService authenticates callers by wallet signature or API key.
type AuthService interface {
	Challenge(ctx context.Context, account domain.Address) (*domain.LoginChallenge, error)
	Login(ctx context.Context, account domain.Address, signature []byte) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Logout(ctx context.Context, principal *domain.Principal) error
	ValidateToken(ctx context.Context, token string) (*domain.Principal, error)
	ValidateAPIKey(ctx context.Context, key string) (*domain.Principal, error)
}
