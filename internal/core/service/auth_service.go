package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/port"
)

type LoginResult struct {
	Token         string
	User          domain.User
	BorrowedBooks []domain.Book
}

type AuthService struct {
	users     port.UserRepository
	hasher    port.PasswordHasher
	tokens    port.TokenIssuer
	inventory *InventoryService
	logger    *slog.Logger

	// compared against when the username is unknown so that a miss costs
	// as much as a wrong password
	dummyHash string
}

func NewAuthService(users port.UserRepository, hasher port.PasswordHasher, tokens port.TokenIssuer, inventory *InventoryService, logger *slog.Logger) (*AuthService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		inventory: inventory,
		logger:    logger.With("component", "auth"),
		dummyHash: dummy,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hasher.Compare(s.dummyHash, password)
		s.logger.Warn("login failed", "username", username, "reason", "unknown user")
		return nil, domain.ErrInvalidLogin
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		s.logger.Warn("login failed", "username", username, "reason", "wrong password")
		return nil, domain.ErrInvalidLogin
	}

	token, err := s.tokens.Issue(domain.Identity{ID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	borrowed, err := s.inventory.BorrowedBooks(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: *user, BorrowedBooks: borrowed}, nil
}

// Authenticate verifies a bearer token and returns the caller it names.
func (s *AuthService) Authenticate(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	return id, nil
}
