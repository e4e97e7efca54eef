package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/config"
	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/repository"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates portal accounts and login flows.
type AuthService struct {
	store      repository.Store
	tokenMgr   *auth.TokenManager
	bcryptCost int
	resetTTL   time.Duration
	now        Clock
}

// UserInput describes an account created by an admin. Agent and closer
// accounts must link to their registry row.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	AgentID  *string
	CloserID *string
}

// LoginResult carries the issued token.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps Dependencies) *AuthService {
	return &AuthService{
		store:      deps.Store,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		resetTTL:   time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute,
		now:        deps.clock(),
	}
}

// Login authenticates an account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.Repos().Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, storeError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// CreateUser provisions a portal account.
func (s *AuthService) CreateUser(ctx context.Context, actor domain.Actor, input UserInput) (*domain.User, error) {
	if err := requireAdmin(actor, "create accounts"); err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:   strings.TrimSpace(input.Name),
		Email:  normalizeEmail(input.Email),
		Role:   input.Role,
		Active: true,
	}
	if err := validateUser(user, input); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		switch input.Role {
		case domain.RoleAgent:
			if _, err := repos.Agents.GetByID(ctx, *input.AgentID); err != nil {
				return lookupError(err, "agent", *input.AgentID)
			}
			user.AgentID = input.AgentID
		case domain.RoleCloser:
			if _, err := repos.Closers.GetByID(ctx, *input.CloserID); err != nil {
				return lookupError(err, "closer", *input.CloserID)
			}
			user.CloserID = input.CloserID
		}
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		return repos.Users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return nil, storeError(err)
	}
	return user, nil
}

// EnsureBootstrapAdmin creates the configured admin account when no admin
// exists yet. It reports whether an account was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return false, nil
	}
	count, err := s.store.Repos().Users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, storeError(err)
	}
	if count > 0 {
		return false, nil
	}
	_, err = s.CreateUser(ctx, domain.SystemActor(), UserInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return passwordTooShort()
	}
	return storeError(s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		user, err := repos.Users.GetByID(ctx, actor.UserID)
		if err != nil {
			return lookupError(err, "user", actor.UserID)
		}
		if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		hash, err := auth.HashPassword(newPassword, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		return repos.Users.Update(ctx, user)
	}))
}

// RequestPasswordReset issues a single-use reset token. Unknown addresses
// return a nil token and no error so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	repos := s.store.Repos()
	user, err := repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !user.Active {
		return nil, nil
	}

	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := repos.PasswordResets.Create(ctx, token); err != nil {
		return nil, storeError(err)
	}
	return token, nil
}

// ConfirmPasswordReset redeems a reset token and stores the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return passwordTooShort()
	}
	return storeError(s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		token, err := repos.PasswordResets.GetByToken(ctx, tokenStr)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("invalid reset token")
			}
			return err
		}
		if !token.Usable(s.now()) {
			return apperrors.NewUnauthorized("reset token expired or used")
		}
		user, err := repos.Users.GetByID(ctx, token.UserID)
		if err != nil {
			return lookupError(err, "user", token.UserID)
		}
		hash, err := auth.HashPassword(newPassword, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		if err := repos.Users.Update(ctx, user); err != nil {
			return err
		}
		return repos.PasswordResets.MarkUsed(ctx, token.ID)
	}))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func validateUser(user *domain.User, input UserInput) error {
	fields := map[string]any{}
	if user.Name == "" {
		fields["name"] = "required"
	}
	if !domain.ValidEmail(user.Email) {
		fields["email"] = "invalid"
	}
	if len(input.Password) < minPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}
	switch input.Role {
	case domain.RoleAdmin:
		if input.AgentID != nil || input.CloserID != nil {
			fields["role"] = "admin accounts cannot link to an agent or closer"
		}
	case domain.RoleAgent:
		if input.AgentID == nil || strings.TrimSpace(*input.AgentID) == "" || input.CloserID != nil {
			fields["agent_id"] = "agent accounts require agent_id only"
		}
	case domain.RoleCloser:
		if input.CloserID == nil || strings.TrimSpace(*input.CloserID) == "" || input.AgentID != nil {
			fields["closer_id"] = "closer accounts require closer_id only"
		}
	default:
		fields["role"] = "must be ADMIN, AGENT or CLOSER"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid account input", fields)
	}
	return nil
}

func passwordTooShort() error {
	return apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
