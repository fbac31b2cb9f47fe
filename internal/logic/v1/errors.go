// Package v1 provides authentication business logic for API version 1.
//
// Error Handling:
// This package defines sentinel errors that represent common authentication failures.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned
// from business logic methods.
//
// Example Usage:
//
//	if user == nil {
//	    return nil, fmt.Errorf("authenticate user %q: %w", username, ErrUserNotFound)
//	}
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrInvalidCredentials):
//	    c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
//	case errors.Is(err, logicv1.ErrUserNotFound):
//	    c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import "errors"

// Sentinel errors for authentication operations.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned.
var (
	// ErrInvalidCredentials indicates the provided credentials are incorrect.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound indicates the user does not exist in the system.
	// Internal only — handlers must map it to the same response as
	// ErrInvalidCredentials so account existence is never revealed.
	// HTTP Status: 401 Unauthorized
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates the username or email already exists in the system.
	// HTTP Status: 409 Conflict
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidToken indicates a malformed token or one with a bad signature.
	// HTTP Status: 401 Unauthorized
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates a correctly signed token past its expiry.
	// HTTP Status: 401 Unauthorized
	ErrTokenExpired = errors.New("token expired")

	// ErrSessionRevoked indicates a refresh token that verified but is no
	// longer the session of record: it was rotated away, cleared by logout,
	// or presented concurrently. The client must discard both tokens and
	// log in again.
	// HTTP Status: 401 Unauthorized
	ErrSessionRevoked = errors.New("session revoked")
)
