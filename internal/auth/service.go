package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat/internal/store"
)

// SearchLimit caps the number of accounts returned by SearchAccounts.
const SearchLimit = 10

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionNotFound is returned when a token's session has ended.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound is returned by account lookups for unknown names.
	ErrUserNotFound = errors.New("user not found")
)

// Store is the persistence the service needs: accounts, sessions and the
// message purge performed at logout.
type Store interface {
	store.UserStore
	store.SessionStore
	PurgeUserMessages(ctx context.Context, username string) (int64, error)
}

// ConnectionEvictor disconnects every live connection of a user.
type ConnectionEvictor interface {
	Evict(ctx context.Context, username string) error
}

// Service provides authentication operations.
type Service struct {
	store     Store
	jwtConfig *JWTConfig
	passwords passwords
	evictor   ConnectionEvictor
	log       *zerolog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.passwords = newPasswords(cost) }
}

// WithEvictor makes Logout disconnect the user's live connections before
// their messages are purged.
func WithEvictor(e ConnectionEvictor) Option {
	return func(s *Service) { s.evictor = e }
}

// NewService creates a new authentication service.
func NewService(st Store, jwtConfig *JWTConfig, logger *zerolog.Logger, opts ...Option) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Service{
		store:     st,
		jwtConfig: jwtConfig,
		passwords: newPasswords(DefaultPasswordCost),
		log:       logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new account and opens a session for it.
func (s *Service) Register(ctx context.Context, username, password string) (string, *store.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 || strings.ContainsAny(username, " \t\r\n") {
		return "", nil, ErrInvalidUsername
	}
	hashedPassword, err := s.passwords.hash(password)
	if err != nil {
		return "", nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword, AvatarURL(username))
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", nil, ErrUserExists
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, user.Username)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login validates credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (string, *store.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.openSession(ctx, user.Username)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Authenticate checks a username/password pair without opening a session.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.passwords.verify(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateToken checks the token signature and that its session is still open.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetSession(ctx, claims.SessionID()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return claims, nil
}

// Logout ends the session, disconnects the user's live connections and purges
// every message the user sent or received, on both sides of each
// conversation. Ending an already closed session is an error and purges nothing.
func (s *Service) Logout(ctx context.Context, claims *Claims) (int64, error) {
	if err := s.store.DeleteSession(ctx, claims.SessionID()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("delete session: %w", err)
	}

	if s.evictor != nil {
		if err := s.evictor.Evict(ctx, claims.Username); err != nil {
			s.log.Warn().Err(err).Str("user", claims.Username).Msg("failed to evict live connections")
		}
	}

	purged, err := s.store.PurgeUserMessages(ctx, claims.Username)
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}

	s.log.Info().Str("user", claims.Username).Int64("purged", purged).Msg("session ended, messages purged")
	return purged, nil
}

// LookupAccount returns the account for username.
func (s *Service) LookupAccount(ctx context.Context, username string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// SearchAccounts returns up to SearchLimit accounts whose name contains query.
func (s *Service) SearchAccounts(ctx context.Context, query string) ([]*store.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*store.User{}, nil
	}
	users, err := s.store.SearchUsers(ctx, query, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

func (s *Service) openSession(ctx context.Context, username string) (string, error) {
	now := s.now()
	sess := &store.Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.jwtConfig.TTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, sess.ID, username, now)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}
