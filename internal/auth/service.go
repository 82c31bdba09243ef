// Package auth implements local accounts: bcrypt password hashes, signed
// session tokens and password reset codes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meufin/internal/core"
	"meufin/internal/storage"
)

// ResetCodeTTL is how long a password reset code stays valid.
const ResetCodeTTL = 15 * time.Minute

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidResetCode   = errors.New("invalid reset code")
	ErrResetCodeExpired   = errors.New("reset code expired")
	ErrForbidden          = errors.New("admin privileges required")
	// ErrRegistrationClosed is returned by Register once an account exists.
	ErrRegistrationClosed = errors.New("registration is closed")
)

// UserStore is the persistence the service needs.
type UserStore interface {
	Create(ctx context.Context, u core.User) (core.User, error)
	CreateFirst(ctx context.Context, u core.User) (core.User, error)
	Update(ctx context.Context, u core.User) error
	Get(ctx context.Context, id int64) (core.User, error)
	GetByEmail(ctx context.Context, email string) (core.User, error)
	GetAll(ctx context.Context) ([]core.User, error)
}

// CodeSender delivers a password reset code out of band.
type CodeSender interface {
	SendResetCode(ctx context.Context, u core.User, code string) error
}

type RegisterRequest struct {
	Name     string `json:"nome" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"senha" validate:"required"`
	Confirm  string `json:"confirmacao"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

type Service struct {
	users  UserStore
	hasher *Hasher
	tokens *TokenService
	codes  CodeSender
	logger *slog.Logger
	now    func() time.Time
}

func NewService(users UserStore, hasher *Hasher, tokens *TokenService, codes CodeSender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, codes: codes, logger: logger, now: time.Now}
}

// Tokens exposes the token service for request authentication.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register is the public sign-up. It only succeeds on an installation with
// no accounts, and that first account is administrator. Everyone else is
// added by an administrator through CreateUser.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (core.User, error) {
	u, err := s.prepare(req)
	if err != nil {
		return core.User{}, err
	}
	u.IsAdmin = true

	u, err = s.users.CreateFirst(ctx, u)
	switch {
	case errors.Is(err, storage.ErrNotEmpty):
		return core.User{}, ErrRegistrationClosed
	case errors.Is(err, storage.ErrDuplicate):
		return core.User{}, ErrUserExists
	case err != nil:
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "Administrator registered", "user_id", u.ID)
	return u, nil
}

// CreateUser adds a regular account on behalf of actor, who must be an
// administrator. A nil actor means an operator on the local machine.
func (s *Service) CreateUser(ctx context.Context, actor *Claims, req RegisterRequest) (core.User, error) {
	if actor != nil && !actor.IsAdmin {
		return core.User{}, ErrForbidden
	}
	u, err := s.prepare(req)
	if err != nil {
		return core.User{}, err
	}

	u, err = s.users.Create(ctx, u)
	if errors.Is(err, storage.ErrDuplicate) {
		return core.User{}, ErrUserExists
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created", "user_id", u.ID)
	return u, nil
}

// prepare validates the form and hashes the password.
func (s *Service) prepare(req RegisterRequest) (core.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := core.Validate(req); err != nil {
		return core.User{}, err
	}
	if req.Password != req.Confirm {
		return core.User{}, ErrPasswordMismatch
	}
	if err := ValidatePassword(req.Password); err != nil {
		return core.User{}, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return core.User{}, err
	}
	return core.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Compare(password, u.PasswordHash) {
		s.logger.WarnContext(ctx, "Login failed", "user_id", u.ID)
		return Session{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Generate(u)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "User logged in", "user_id", u.ID)
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Me reloads the account behind a validated token.
func (s *Service) Me(ctx context.Context, claims *Claims) (core.User, error) {
	u, err := s.users.Get(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrUserNotFound
	}
	return u, err
}

// RequestPasswordReset stores a hashed six digit code valid for
// ResetCodeTTL and hands the plain code to the CodeSender.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	code, err := NewResetCode()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return err
	}
	u.ResetCodeHash = hash
	u.ResetExpiresAt = s.now().Add(ResetCodeTTL).UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}
	if s.codes != nil {
		if err := s.codes.SendResetCode(ctx, u, code); err != nil {
			return fmt.Errorf("send reset code: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "Password reset requested", "user_id", u.ID)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u.ResetCodeHash == "" || !s.hasher.Compare(strings.TrimSpace(code), u.ResetCodeHash) {
		return ErrInvalidResetCode
	}
	if s.now().After(u.ResetExpiresAt) {
		return ErrResetCodeExpired
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.ResetCodeHash = ""
	u.ResetExpiresAt = time.Time{}
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password reset", "user_id", u.ID)
	return nil
}

func (s *Service) MakeAdmin(ctx context.Context, email string) (core.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	if u.IsAdmin {
		return u, nil
	}
	u.IsAdmin = true
	if err := s.users.Update(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("promote user: %w", err)
	}
	s.logger.InfoContext(ctx, "User promoted to admin", "user_id", u.ID)
	return u, nil
}

// ListUsers is restricted to administrators. A nil actor means an operator
// on the local machine.
func (s *Service) ListUsers(ctx context.Context, actor *Claims) ([]core.User, error) {
	if actor != nil && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.users.GetAll(ctx)
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
