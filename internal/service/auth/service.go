package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

type Config struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	NonceTTL   time.Duration
	APIKeys    []APIKey
	Now        func() time.Time
}

// APIKey binds a bcrypt hash of an operator key to an account. Keys are
// presented as "<id>.<secret>" and the hash covers the whole string.
type APIKey struct {
	ID      string
	Account domain.Address
	Hash    string
}

// Service signs callers in by personal_sign over a server nonce and issues
// JWT sessions bound to the recovered account.
type Service struct {
	jwt      *JWTService
	cache    ports.Cache
	issuer   string
	nonceTTL time.Duration
	apiKeys  map[string]APIKey
	now      func() time.Time
	log      *zap.Logger
}

var _ ports.AuthService = (*Service)(nil)

func NewService(cfg Config, cache ports.Cache, log *zap.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = 5 * time.Minute
	}
	keys := make(map[string]APIKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k.ID] = k
	}
	return &Service{
		jwt:      NewJWTService(cfg, cache, log),
		cache:    cache,
		issuer:   cfg.Issuer,
		nonceTTL: cfg.NonceTTL,
		apiKeys:  keys,
		now:      cfg.Now,
		log:      log,
	}
}

func (s *Service) Challenge(ctx context.Context, account domain.Address) (*domain.LoginChallenge, error) {
	if account == domain.ZeroAddress {
		return nil, domain.E(domain.KindInvalidInput, "challenge", "account is required")
	}

	nonce := uuid.New().String()
	expiresAt := s.now().Add(s.nonceTTL)
	message := ChallengeMessage(s.issuer, account, nonce, expiresAt)

	if err := s.cache.Set(ctx, nonceKey(account), message, s.nonceTTL); err != nil {
		s.log.Error("failed to store login nonce", zap.String("account", account.Hex()), zap.Error(err))
		return nil, fmt.Errorf("store nonce: %w", err)
	}

	return &domain.LoginChallenge{
		Account:   account,
		Nonce:     nonce,
		Message:   message,
		ExpiresAt: expiresAt,
	}, nil
}

// ChallengeMessage is the text a wallet signs to log in.
func ChallengeMessage(issuer string, account domain.Address, nonce string, expiresAt time.Time) string {
	return fmt.Sprintf("Sign in to %s\nAccount: %s\nNonce: %s\nExpires: %s",
		issuer, account.Hex(), nonce, expiresAt.UTC().Format(time.RFC3339))
}

// Login checks that signature is a personal_sign signature by account over
// its pending challenge. The challenge is consumed whatever the outcome.
func (s *Service) Login(ctx context.Context, account domain.Address, signature []byte) (*domain.Session, error) {
	message, err := s.cache.Get(ctx, nonceKey(account))
	if errors.Is(err, ports.ErrCacheMiss) {
		return nil, domain.E(domain.KindUnauthenticated, "login", "no pending challenge for %s", account.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("load nonce: %w", err)
	}
	if err := s.cache.Delete(ctx, nonceKey(account)); err != nil {
		s.log.Warn("failed to consume login nonce", zap.String("account", account.Hex()), zap.Error(err))
	}

	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return nil, err
	}
	if signer != account {
		s.log.Warn("login signature from wrong account",
			zap.String("account", account.Hex()),
			zap.String("signer", signer.Hex()),
		)
		return nil, domain.E(domain.KindUnauthenticated, "login", "signature does not match account")
	}

	s.log.Info("Wallet login", zap.String("account", account.Hex()))
	return s.issueSession(account, domain.AuthMethodWallet)
}

// RecoverSigner returns the account whose key produced an EIP-191
// personal_sign signature over message. V may be 0/1 or 27/28.
func RecoverSigner(message string, signature []byte) (domain.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return domain.ZeroAddress, domain.E(domain.KindUnauthenticated, "recover signer", "signature must be %d bytes", crypto.SignatureLength)
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return domain.ZeroAddress, domain.E(domain.KindUnauthenticated, "recover signer", "invalid signature")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Refresh rotates a session: the presented refresh token is revoked and a
// new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := s.jwt.ValidateToken(ctx, refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.jwt.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return s.issueSession(claims.Account(), claims.Method)
}

// Logout revokes the access token the principal authenticated with. API key
// principals have nothing to revoke.
func (s *Service) Logout(ctx context.Context, principal *domain.Principal) error {
	if principal == nil || principal.TokenID == "" {
		return nil
	}
	return s.jwt.RevokeToken(ctx, principal.TokenID, s.now().Add(s.jwt.accessDuration))
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.jwt.ValidateToken(ctx, token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &domain.Principal{
		Account: claims.Account(),
		Method:  claims.Method,
		TokenID: claims.ID,
	}, nil
}

func (s *Service) ValidateAPIKey(ctx context.Context, key string) (*domain.Principal, error) {
	id, _, ok := strings.Cut(key, ".")
	if !ok {
		return nil, domain.E(domain.KindUnauthenticated, "validate api key", "malformed api key")
	}
	k, found := s.apiKeys[id]
	if !found {
		return nil, domain.E(domain.KindUnauthenticated, "validate api key", "unknown api key")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(key)); err != nil {
		return nil, domain.E(domain.KindUnauthenticated, "validate api key", "invalid api key")
	}
	return &domain.Principal{Account: k.Account, Method: domain.AuthMethodAPIKey}, nil
}

// HashAPIKey returns the bcrypt hash to configure for key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) issueSession(account domain.Address, method domain.AuthMethod) (*domain.Session, error) {
	access, expiresAt, err := s.jwt.GenerateAccessToken(account, method)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.jwt.GenerateRefreshToken(account, method)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		Account:      account,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func nonceKey(account common.Address) string {
	return "auth_nonce:" + strings.ToLower(account.Hex())
}
