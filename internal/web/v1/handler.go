package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/videotube/auth-service/internal/core/domain"
	logicv1 "github.com/videotube/auth-service/internal/logic/v1"
	"github.com/videotube/auth-service/internal/token"
	"github.com/videotube/auth-service/middleware"
)

// RefreshTokenCookie is the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	auth   *logicv1.AuthService
	tokens *token.Maker
}

// NewHandler creates a new Handler with the given AuthService and token maker.
// The maker is only consulted for cookie lifetimes; all verification happens
// in the logic layer or the access guard.
func NewHandler(auth *logicv1.AuthService, tokens *token.Maker) *Handler {
	return &Handler{auth: auth, tokens: tokens}
}

// RegisterRoutes registers all auth API v1 routes on the given router group.
// The guard protects every route that requires an authenticated caller.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard gin.HandlerFunc) {
	rg.POST("/auth/register", h.Register)
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/refresh", h.Refresh)
	rg.POST("/auth/logout", guard, h.Logout)
	rg.POST("/auth/change-password", guard, h.ChangePassword)
	rg.GET("/auth/me", guard, h.GetMe)
}

// setAuthCookies delivers a token pair as two HTTP-only, transport-secure
// cookies with max-ages matching each token's lifetime.
func (h *Handler) setAuthCookies(c *gin.Context, pair domain.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, int(h.tokens.AccessTTL().Seconds()), "/", "", true, true)
	c.SetCookie(RefreshTokenCookie, pair.RefreshToken, int(h.tokens.RefreshTTL().Seconds()), "/", "", true, true)
}

func clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", true, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", true, true)
}

// Login handles HTTP request for user login.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Error().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email is required"})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	response, err := h.auth.Login(ctx, req)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Login failed")

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		case errors.Is(err, logicv1.ErrUserNotFound):
			// Don't reveal that the user doesn't exist.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.setAuthCookies(c, response.TokenPair)

	logger.Info().Str("user_id", response.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, response)
}

// Register handles HTTP request for user registration.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Error().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	user, err := h.auth.Register(ctx, req)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Str("username", req.Username).Msg("Registration failed")

		switch {
		case errors.Is(err, logicv1.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("Registration successful")
	c.JSON(http.StatusCreated, user)
}

// Refresh handles HTTP request to rotate a refresh token.
// POST /api/v1/auth/refresh
//
// The token is taken from the refreshToken cookie or, failing that, from the
// request body. Any failure means the client must discard both tokens and
// log in again, so the auth cookies are cleared on every error path.
func (h *Handler) Refresh(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	presented := refreshTokenFromRequest(c)
	if presented == "" {
		span.SetAttributes(attribute.Bool("auth.present", false))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token required"})
		return
	}

	pair, err := h.auth.Refresh(ctx, presented)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Refresh failed")
		clearAuthCookies(c)

		switch {
		case errors.Is(err, logicv1.ErrInvalidToken),
			errors.Is(err, logicv1.ErrTokenExpired),
			errors.Is(err, logicv1.ErrSessionRevoked):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.setAuthCookies(c, *pair)

	logger.Info().Msg("Session refreshed")
	c.JSON(http.StatusOK, pair)
}

// Logout handles HTTP request to end the current session.
// POST /api/v1/auth/logout (guarded)
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	if err := h.auth.Logout(ctx, userID); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	clearAuthCookies(c)

	logger.Info().Str("user_id", userID).Msg("Logout successful")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ChangePassword handles HTTP request to change the caller's password.
// POST /api/v1/auth/change-password (guarded)
func (h *Handler) ChangePassword(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var req domain.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ChangePassword(ctx, userID, req); err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Password change failed")

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		case errors.Is(err, logicv1.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", userID).Msg("Password changed")
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}

// GetMe handles HTTP request for the current user's profile.
// GET /api/v1/auth/me (guarded)
func (h *Handler) GetMe(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	userID, ok := middleware.AuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	user, err := h.auth.CurrentUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("User lookup failed")

		switch {
		case errors.Is(err, logicv1.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

// refreshTokenFromRequest extracts a bare refresh token from the cookie or
// the JSON body.
func refreshTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	var req domain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}

	return ""
}
