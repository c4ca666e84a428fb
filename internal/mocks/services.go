package mocks

import (
	"context"
	"strings"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

var _ ports.AuthService = (*MockAuthService)(nil)

// MockAuthService is a mock implementation of AuthService interface
type MockAuthService struct {
	ChallengeFunc      func(ctx context.Context, account domain.Address) (*domain.LoginChallenge, error)
	LoginFunc          func(ctx context.Context, account domain.Address, signature []byte) (*domain.Session, error)
	RefreshFunc        func(ctx context.Context, refreshToken string) (*domain.Session, error)
	LogoutFunc         func(ctx context.Context, principal *domain.Principal) error
	ValidateTokenFunc  func(ctx context.Context, token string) (*domain.Principal, error)
	ValidateAPIKeyFunc func(ctx context.Context, key string) (*domain.Principal, error)
}

// NewMockAuthService accepts bearer tokens of the form "token-<hex address>"
// and rejects everything else, unless the Func fields are replaced.
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func (m *MockAuthService) Challenge(ctx context.Context, account domain.Address) (*domain.LoginChallenge, error) {
	if m.ChallengeFunc != nil {
		return m.ChallengeFunc(ctx, account)
	}
	return &domain.LoginChallenge{Account: account, Nonce: "nonce", Message: "sign me"}, nil
}

func (m *MockAuthService) Login(ctx context.Context, account domain.Address, signature []byte) (*domain.Session, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, account, signature)
	}
	return &domain.Session{Account: account, AccessToken: TokenFor(account), RefreshToken: "refresh-" + account.Hex()}, nil
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, domain.ErrUnauthenticated
}

func (m *MockAuthService) Logout(ctx context.Context, principal *domain.Principal) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, principal)
	}
	return nil
}

func (m *MockAuthService) ValidateToken(ctx context.Context, token string) (*domain.Principal, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, token)
	}
	hex, ok := strings.CutPrefix(token, "token-")
	account, err := domain.ParseAddress(hex)
	if !ok || err != nil {
		return nil, domain.E(domain.KindUnauthenticated, "validate token", "invalid token")
	}
	return &domain.Principal{Account: account, Method: domain.AuthMethodWallet, TokenID: token}, nil
}

func (m *MockAuthService) ValidateAPIKey(ctx context.Context, key string) (*domain.Principal, error) {
	if m.ValidateAPIKeyFunc != nil {
		return m.ValidateAPIKeyFunc(ctx, key)
	}
	return nil, domain.E(domain.KindUnauthenticated, "validate api key", "unknown api key")
}

// TokenFor returns a bearer token the default MockAuthService accepts for account.
func TokenFor(account domain.Address) string {
	return "token-" + account.Hex()
}
