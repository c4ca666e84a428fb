package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims represents the custom JWT claims used by the application. Subject
// is the checksummed account address.
type Claims struct {
	jwt.RegisteredClaims
	Method domain.AuthMethod `json:"method"`
	Type   string            `json:"type"` // "access" or "refresh"
}

// Account returns the ledger account the token was issued to.
func (c *Claims) Account() domain.Address {
	return common.HexToAddress(c.Subject)
}

// JWTService handles generation, validation, and revocation of JWT tokens.
type JWTService struct {
	secret          []byte
	issuer          string
	audience        string
	accessDuration  time.Duration
	refreshDuration time.Duration
	cache           ports.Cache
	now             func() time.Time
	log             *zap.Logger
}

// NewJWTService creates a new JWTService instance.
func NewJWTService(cfg Config, cache ports.Cache, log *zap.Logger) *JWTService {
	log.Info("JWT service initialized",
		zap.Duration("access_duration", cfg.AccessTTL),
		zap.Duration("refresh_duration", cfg.RefreshTTL),
	)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &JWTService{
		secret:          []byte(cfg.Secret),
		issuer:          cfg.Issuer,
		audience:        cfg.Audience,
		accessDuration:  cfg.AccessTTL,
		refreshDuration: cfg.RefreshTTL,
		cache:           cache,
		now:             now,
		log:             log,
	}
}

// GenerateAccessToken creates a signed access token for account.
func (s *JWTService) GenerateAccessToken(account domain.Address, method domain.AuthMethod) (string, time.Time, error) {
	return s.generate(account, method, tokenTypeAccess, s.accessDuration)
}

// GenerateRefreshToken creates a signed refresh token for account.
func (s *JWTService) GenerateRefreshToken(account domain.Address, method domain.AuthMethod) (string, time.Time, error) {
	return s.generate(account, method, tokenTypeRefresh, s.refreshDuration)
}

func (s *JWTService) generate(account domain.Address, method domain.AuthMethod, typ string, ttl time.Duration) (string, time.Time, error) {
	jti := uuid.New().String()
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Hex(),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Method: method,
		Type:   typ,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign token",
			zap.String("account", account.Hex()),
			zap.String("type", typ),
			zap.Error(err),
		)
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}

	s.log.Debug("token generated",
		zap.String("account", account.Hex()),
		zap.String("type", typ),
		zap.String("jti", jti),
	)

	return signedToken, expiresAt, nil
}

// ValidateToken parses and validates a JWT token string of the expected type,
// returning the claims if the token is valid and has not been revoked.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString, expectedType string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, domain.E(domain.KindUnauthenticated, "validate token", "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.E(domain.KindUnauthenticated, "validate token", "invalid token claims")
	}
	if claims.Type != expectedType {
		return nil, domain.E(domain.KindUnauthenticated, "validate token", "expected %s token, got %q", expectedType, claims.Type)
	}
	if !common.IsHexAddress(claims.Subject) {
		return nil, domain.E(domain.KindUnauthenticated, "validate token", "subject is not an account")
	}
	revoked, err := s.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, domain.E(domain.KindUnauthenticated, "validate token", "token revoked")
	}

	s.log.Debug("token validated",
		zap.String("subject", claims.Subject),
		zap.String("type", claims.Type),
		zap.String("jti", claims.ID),
	)

	return claims, nil
}

// RevokeToken stores the token ID in the cache until expiresAt, blacklisting
// it until it would have naturally expired.
func (s *JWTService) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	err := s.cache.Set(ctx, revokedKey(tokenID), "revoked", ttl)
	if err != nil {
		s.log.Error("failed to revoke token",
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.log.Info("token revoked",
		zap.String("token_id", tokenID),
	)

	return nil
}

// IsTokenRevoked checks whether a token ID has been revoked. A cache outage
// is reported rather than treated as "not revoked".
func (s *JWTService) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.cache.Get(ctx, revokedKey(tokenID))
	if errors.Is(err, ports.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return val == "revoked", nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked_token:%s", tokenID)
}
