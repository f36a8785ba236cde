package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/event-service/internal/domain"
)

const (
	// MinSecretLength is the smallest accepted HMAC key, 256 bits.
	MinSecretLength = 32

	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// ErrWeakSecret is returned when the signing key is missing or too short.
var ErrWeakSecret = errors.New("token signing secret must be at least 32 bytes")

var signingMethod = jwt.SigningMethodHS512

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Claims describes the JWT payload.
type Claims struct {
	Type domain.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed token pairs.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService builds a service from cfg.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenService{
		secret:     secret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Clock,
	}, nil
}

// IssueTokenPair signs an access and a refresh token for subjectID.
// Both expirations derive from a single clock read.
func (ts *TokenService) IssueTokenPair(subjectID string) (domain.TokenPair, error) {
	now := ts.now().UTC()

	access, accessExp, err := ts.sign(subjectID, domain.TokenTypeAccess, now, ts.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := ts.sign(subjectID, domain.TokenTypeRefresh, now, ts.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccessToken signs a standalone access token, used when refreshing.
func (ts *TokenService) IssueAccessToken(subjectID string) (string, time.Time, error) {
	return ts.sign(subjectID, domain.TokenTypeAccess, ts.now().UTC(), ts.accessTTL)
}

func (ts *TokenService) sign(subjectID string, typ domain.TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(signingMethod, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

// Validate verifies tokenStr and checks it is an unexpired token of the expected type.
func (ts *TokenService) Validate(tokenStr string, expected domain.TokenType) (*domain.TokenPayload, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ts.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %s token", domain.ErrInvalidToken, expected)
	}
	if claims.Subject == "" {
		return nil, domain.ErrMissingSubject
	}

	return &domain.TokenPayload{
		Subject:   claims.Subject,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
