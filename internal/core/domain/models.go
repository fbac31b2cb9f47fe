package domain

// User is the public representation of a user, safe to return to clients.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// LoginRequest is the login payload. Either username or email identifies
// the account; the handler rejects requests carrying neither.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// RefreshRequest carries a refresh token in the request body, used when the
// client does not present it as a cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest is the password change payload for an
// authenticated user.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// TokenPair is one issued session: a short-lived access token and the single
// long-lived refresh token now on record for the user.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by login: the user plus a fresh token pair.
type AuthResponse struct {
	User      User      `json:"user"`
	TokenPair TokenPair `json:"tokens"`
}
