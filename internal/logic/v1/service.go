package v1

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/auth-service/internal/core/domain"
	"github.com/videotube/auth-service/internal/token"
	"github.com/videotube/auth-service/middleware"
)

// AuthService implements the session token lifecycle: credential login,
// refresh rotation, and revocation. It depends on repository interfaces
// (injected via constructor) and MUST NOT access the database directly.
//
// Invariant owned here: at most one refresh token is valid per user at any
// time. Login overwrites it, refresh rotates it through a compare-and-swap,
// logout clears it.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	tokens   *token.Maker
}

// NewAuthService creates a new AuthService with the given dependencies.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, tokens *token.Maker) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
	}
}

// issuePair mints a fresh access/refresh pair for the user.
func (s *AuthService) issuePair(userID string) (domain.TokenPair, error) {
	access, _, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, _, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Login verifies credentials and starts a new session.
//
// A successful login unconditionally overwrites any refresh token already on
// record — a new login always invalidates the previous session. A failed
// login leaves the stored session untouched.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", req.Username),
	))
	defer span.End()

	row, err := s.users.GetByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", req.Username, err)
	}
	if row == nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate user %q: %w", req.Username, ErrUserNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)); err != nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate user %q: %w", req.Username, ErrInvalidCredentials)
	}

	pair, err := s.issuePair(row.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.sessions.SetRefreshToken(ctx, row.ID, pair.RefreshToken); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	// Update last_login_at (best-effort, don't fail login)
	if updateErr := s.users.UpdateLastLogin(ctx, row.ID); updateErr != nil {
		span.RecordError(fmt.Errorf("update last_login_at: %w", updateErr))
	}

	span.SetAttributes(
		attribute.String("user.id", row.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return &domain.AuthResponse{
		User: domain.User{
			ID:       row.ID,
			Username: row.Username,
			Email:    row.Email,
			FullName: row.FullName,
		},
		TokenPair: pair,
	}, nil
}

// Refresh exchanges a valid refresh token for a brand-new pair, rotating the
// stored token.
//
// The swap is a compare-and-swap at the storage layer: when the presented
// token is not the session of record (already rotated, cleared, or raced by
// a concurrent refresh), the stored token is cleared as a safety measure and
// ErrSessionRevoked is returned, forcing a full re-login for every holder.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*domain.TokenPair, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.refresh", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	userID, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		span.SetAttributes(attribute.Bool("refresh.success", false))
		switch {
		case errors.Is(err, token.ErrTokenExpired):
			return nil, fmt.Errorf("verify refresh token: %w", ErrTokenExpired)
		default:
			return nil, fmt.Errorf("verify refresh token: %w", ErrInvalidToken)
		}
	}

	pair, err := s.issuePair(userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	matched, err := s.sessions.ReplaceRefreshTokenIfMatches(ctx, userID, presented, pair.RefreshToken)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !matched {
		// Reuse or forgery signal: the token verified but is not the session
		// of record. Clear whatever is stored so every holder must re-login.
		if clearErr := s.sessions.SetRefreshToken(ctx, userID, ""); clearErr != nil {
			span.RecordError(fmt.Errorf("clear refresh token: %w", clearErr))
		}
		span.SetAttributes(attribute.Bool("refresh.success", false))
		span.AddEvent("refresh.reuse_detected")
		return nil, fmt.Errorf("refresh for user %q: %w", userID, ErrSessionRevoked)
	}

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("refresh.success", true),
	)
	span.AddEvent("session.rotated")

	return &pair, nil
}

// Logout clears the stored refresh token for the user. Logging out twice, or
// with no active session, is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := s.sessions.SetRefreshToken(ctx, userID, ""); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear refresh token: %w", err)
	}

	span.AddEvent("session.revoked")
	return nil
}

// Register creates a new user account. No session is started; the client is
// expected to log in afterwards.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", req.Username),
	))
	defer span.End()

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		span.SetAttributes(attribute.Bool("registration.success", false))
		return nil, fmt.Errorf("register user %q: %w", req.Username, ErrUserExists)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.users.Create(ctx, req.Username, req.Email, req.FullName, string(passwordHash))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("registration.success", true),
	)
	span.AddEvent("user.registered")

	return &domain.User{
		ID:       userID,
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	}, nil
}

// ChangePassword verifies the old password and stores a hash of the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	ctx, span := middleware.StartSpan(ctx, "auth.change_password", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	row, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query user %q: %w", userID, err)
	}
	if row == nil {
		return fmt.Errorf("change password for user %q: %w", userID, ErrUserNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.OldPassword)); err != nil {
		span.AddEvent("password_change.rejected")
		return fmt.Errorf("change password for user %q: %w", userID, ErrInvalidCredentials)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, string(newHash)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password hash: %w", err)
	}

	span.AddEvent("password.changed")
	return nil
}

// CurrentUser returns the profile of an authenticated user.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.current_user", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	row, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", userID, err)
	}
	if row == nil {
		return nil, fmt.Errorf("lookup user %q: %w", userID, ErrUserNotFound)
	}

	return &domain.User{
		ID:       row.ID,
		Username: row.Username,
		Email:    row.Email,
		FullName: row.FullName,
	}, nil
}
