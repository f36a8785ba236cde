package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 100
)

// LoginThrottle counts failed logins per username.
type LoginThrottle interface {
	Blocked(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// AuthService coordinates registration, login and caller resolution.
type AuthService struct {
	users      repository.UserRepository
	events     repository.EventRepository
	hasher     *auth.PasswordHasher
	tokens     *auth.TokenService
	throttle   LoginThrottle
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
// Throttle, Dispatcher and Metrics are optional.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	EventRepo  repository.EventRepository
	Hasher     *auth.PasswordHasher
	Tokens     *auth.TokenService
	Throttle   LoginThrottle
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		events:     deps.EventRepo,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		throttle:   deps.Throttle,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     observability.OrNop(deps.Logger),
	}
}

// Register creates a new account. A nil or blank email registers without one.
func (s *AuthService) Register(ctx context.Context, username string, email *string, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, fmt.Errorf("%w: username must be %d-%d characters", domain.ErrInvalidInput, MinUsernameLength, MaxUsernameLength)
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateIdentity
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration()
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	publish(ctx, s.dispatcher, s.logger, events.Message{
		Type:    events.MessageUserRegistered,
		UserID:  user.ID,
		Payload: events.UserRegisteredPayload{Username: user.Username},
	})
	return user, nil
}

// Authenticate verifies credentials. Unknown users and wrong passwords both
// yield domain.ErrAuthFailed. The username is trimmed as in Register.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if s.throttle != nil {
		blocked, err := s.throttle.Blocked(ctx, username)
		if err != nil {
			s.logger.Warn("login throttle unavailable", zap.Error(err))
		} else if blocked {
			s.metrics.RecordAuth(observability.AuthThrottled)
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		s.hasher.BurnCycles(password)
		return nil, s.failLogin(ctx, username)
	case err != nil:
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.failLogin(ctx, username)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, username); err != nil {
			s.logger.Warn("reset login attempts", zap.Error(err))
		}
	}
	s.metrics.RecordAuth(observability.AuthSucceeded)
	return user, nil
}

func (s *AuthService) failLogin(ctx context.Context, username string) error {
	s.metrics.RecordAuth(observability.AuthFailed)
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, username); err != nil {
			s.logger.Warn("record login attempt", zap.Error(err))
		}
	}
	return domain.ErrAuthFailed
}

// Login authenticates and issues a token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, domain.TokenPair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	pair, err := s.tokens.IssueTokenPair(user.ID)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	return user, pair, nil
}

// ResolveCurrentUser maps an access token to its user. Every token failure
// and a missing user are reported as domain.ErrCredentialsInvalid.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	return s.resolve(ctx, accessToken, domain.TokenTypeAccess)
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	user, err := s.resolve(ctx, refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.IssueAccessToken(user.ID)
}

func (s *AuthService) resolve(ctx context.Context, token string, typ domain.TokenType) (*domain.User, error) {
	payload, err := s.tokens.Validate(token, typ)
	if err != nil {
		s.metrics.RecordAuth(observability.AuthRejected)
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialsInvalid, err)
	}

	user, err := s.users.FindByID(ctx, payload.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.metrics.RecordAuth(observability.AuthRejected)
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialsInvalid, err)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account. Only administrators may call it.
func (s *AuthService) ListUsers(ctx context.Context, caller *domain.User) ([]domain.User, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return s.users.List(ctx)
}

// UpdateProfile replaces the user's email. A nil or blank email clears it.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, email *string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Email = normalizeEmail(email)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return domain.ErrAuthFailed
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

func checkPassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password required", domain.ErrInvalidInput)
	}
	if len(password) > auth.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, auth.MaxPasswordBytes)
	}
	return nil
}

// DeleteAccount removes the user and all of their memberships.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if s.events != nil {
		if err := s.events.DeleteMembershipsForUser(ctx, userID); err != nil {
			return err
		}
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", userID))
	return nil
}

// SetAdmin grants or revokes the admin flag.
func (s *AuthService) SetAdmin(ctx context.Context, username string, admin bool) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = admin
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
