package domain

import "context"

// SessionRepository defines the data-access contract for the per-user session
// record: at most one valid refresh token per user at any time. The stored
// value is opaque to this layer — no token content is validated here.
//
// Single-writer-per-user semantics are the caller's responsibility; the one
// atomicity guarantee implementations must provide is ReplaceRefreshTokenIfMatches.
type SessionRepository interface {
	// GetRefreshToken returns the refresh token currently on record for the
	// user, or "" when the user has no active session (or does not exist).
	GetRefreshToken(ctx context.Context, userID string) (string, error)

	// SetRefreshToken unconditionally overwrites the stored refresh token.
	// An empty token clears the session record.
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error

	// ReplaceRefreshTokenIfMatches atomically replaces the stored refresh
	// token with next, but only when the current value equals presented.
	// Returns false without modifying anything when the values differ or no
	// session record exists. This is the compare-and-swap that makes refresh
	// rotation safe under concurrent callers for the same user.
	ReplaceRefreshTokenIfMatches(ctx context.Context, userID, presented, next string) (bool, error)
}
