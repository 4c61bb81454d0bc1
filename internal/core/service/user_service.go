package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/core/rbac"
	"github.com/rl1809/bookshelf/internal/port"
)

// maxPasswordBytes is the longest password bcrypt will hash.
const maxPasswordBytes = 72

func checkPasswordLength(password string) error {
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

type UserService struct {
	users  port.UserRepository
	roles  *rbac.Registry
	hasher port.PasswordHasher
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewUserService(users port.UserRepository, roles *rbac.Registry, hasher port.PasswordHasher, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:  users,
		roles:  roles,
		hasher: hasher,
		logger: logger.With("component", "users"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Register creates a self-service account, which always gets the user role.
func (s *UserService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	return s.Create(ctx, username, password, domain.RoleUser)
}

// Create adds an account with an explicit role. The role must exist in the
// registry and cannot be anonymous.
func (s *UserService) Create(ctx context.Context, username, password, role string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	if role == "" {
		role = domain.RoleUser
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}
	if role == domain.RoleAnonymous || !s.roles.HasRole(role) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, role)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return &user, nil
}

// EnsureAdmin creates an admin account named username unless one with that
// name already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	_, err = s.Create(ctx, username, password, domain.RoleAdmin)
	return err
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// ValidateCurrentPassword reports whether candidate matches the stored hash.
func (s *UserService) ValidateCurrentPassword(ctx context.Context, userID, candidate string) (bool, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.hasher.Compare(user.PasswordHash, candidate), nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", domain.ErrInvalidInput)
	}
	if err := checkPasswordLength(next); err != nil {
		return err
	}

	ok, err := s.ValidateCurrentPassword(ctx, userID, current)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCurrentPasswordMismatch
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}
