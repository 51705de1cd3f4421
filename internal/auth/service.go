package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// UserStore is the part of the users repository accounts need.
type UserStore interface {
	Create(ctx context.Context, params repository.UserCreateParams) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	Update(ctx context.Context, id string, params repository.UserUpdateParams) (domain.User, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// ProfileUpdate leaves fields untouched when nil.
type ProfileUpdate struct {
	Bio      *string
	Password *string
}

// Service implements signup, login, status and profile updates.
type Service struct {
	users  UserStore
	tokens *TokenIssuer
	cost   int
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt cost, mainly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(users UserStore, tokens *TokenIssuer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost, logger: logger.With("component", "auth")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new account. Usernames are unique.
func (s *Service) Signup(ctx context.Context, username, password, bio string) (domain.User, error) {
	const op = "user.signup"
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return domain.User{}, domain.E(domain.KindValidationFailed, op, "password", err)
	}
	user, err := s.users.Create(ctx, repository.UserCreateParams{
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
		Bio:          strings.TrimSpace(bio),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, domain.E(domain.KindAlreadyExists, op, "username", err)
		}
		return domain.User{}, repository.Classify(op, err)
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and issues a session token. Unknown users and
// wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	const op = "user.login"
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Session{}, repository.Classify(op, err)
	}
	if err != nil || !VerifyPassword(user.PasswordHash, password) {
		return Session{}, domain.E(domain.KindNotAuthorized, op, "credentials", nil)
	}

	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, repository.Classify(op, err)
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate turns a bearer token into a caller. Invalid tokens yield an
// anonymous caller.
func (s *Service) Authenticate(token string) domain.Caller {
	if token == "" {
		return domain.Caller{}
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("rejecting token", "error", err)
		return domain.Caller{}
	}
	return domain.AuthenticatedCaller(claims.Subject)
}

// Status returns the account behind an authenticated caller.
func (s *Service) Status(ctx context.Context, caller domain.Caller) (domain.User, error) {
	const op = "user.status"
	userID, err := caller.Require(op)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.E(domain.KindUnauthenticated, op, "", err)
		}
		return domain.User{}, repository.Classify(op, err)
	}
	return user, nil
}

// GetUser returns a public profile.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	const op = "user.get"
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.E(domain.KindResourceNotFound, op, userID, nil)
		}
		return domain.User{}, repository.Classify(op, err)
	}
	return user, nil
}

// UpdateProfile changes bio and/or password of the caller's own account.
func (s *Service) UpdateProfile(ctx context.Context, caller domain.Caller, userID string, update ProfileUpdate) (domain.User, error) {
	const op = "user.update"
	callerID, err := caller.Require(op)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return domain.User{}, err
	}
	if callerID != userID {
		return domain.User{}, domain.E(domain.KindNotAuthorized, op, userID, nil)
	}

	params := repository.UserUpdateParams{}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		params.Bio = &bio
	}
	if update.Password != nil {
		hash, err := HashPassword(*update.Password, s.cost)
		if err != nil {
			return domain.User{}, domain.E(domain.KindValidationFailed, op, "password", err)
		}
		params.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, userID, params)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.E(domain.KindResourceNotFound, op, userID, nil)
		}
		return domain.User{}, repository.Classify(op, err)
	}
	return user, nil
}
