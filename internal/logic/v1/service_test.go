package v1

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/auth-service/internal/core/domain"
	"github.com/videotube/auth-service/internal/token"
)

// fakeUserRepo is an in-memory domain.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.UserRow
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.UserRow)}
}

func (f *fakeUserRepo) GetByUsernameOrEmail(_ context.Context, username, email string) (*domain.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			row := *u
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, userID string) (*domain.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	row := *u
	return &row, nil
}

func (f *fakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, fullName, passwordHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("user-%d", f.nextID)
	f.users[id] = &domain.UserRow{
		ID:           id,
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
	}
	return id, nil
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(context.Context, string) error { return nil }

// fakeSessionRepo is an in-memory domain.SessionRepository with the same
// compare-and-swap semantics as the Mongo implementation.
type fakeSessionRepo struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{tokens: make(map[string]string)}
}

func (f *fakeSessionRepo) GetRefreshToken(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID], nil
}

func (f *fakeSessionRepo) SetRefreshToken(_ context.Context, userID, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if refreshToken == "" {
		delete(f.tokens, userID)
		return nil
	}
	f.tokens[userID] = refreshToken
	return nil
}

func (f *fakeSessionRepo) ReplaceRefreshTokenIfMatches(_ context.Context, userID, presented, next string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.tokens[userID]
	if !ok || current != presented {
		return false, nil
	}
	f.tokens[userID] = next
	return true, nil
}

func testMaker(t *testing.T, refreshTTL time.Duration) *token.Maker {
	t.Helper()
	maker, err := token.NewMaker(token.Config{
		AccessSecret:  []byte("logic-test-access-secret-0123456789"),
		RefreshSecret: []byte("logic-test-refresh-secret-012345678"),
		AccessTTL:     time.Minute,
		RefreshTTL:    refreshTTL,
		Issuer:        "auth-service-test",
	})
	require.NoError(t, err)
	return maker
}

// newTestService seeds one user, alice, with password "correct-pw".
func newTestService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeSessionRepo, *token.Maker, string) {
	t.Helper()

	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	maker := testMaker(t, time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	aliceID, err := users.Create(context.Background(), "alice", "alice@example.com", "Alice", string(hash))
	require.NoError(t, err)

	return NewAuthService(users, sessions, maker), users, sessions, maker, aliceID
}

func TestLoginIssuesVerifiablePair(t *testing.T) {
	svc, _, sessions, maker, aliceID := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)
	assert.Equal(t, aliceID, resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)

	// Round trip: the access token authenticates as the same identity.
	subject, err := maker.VerifyAccess(resp.TokenPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, aliceID, subject)

	// The stored session record is exactly the issued refresh token.
	stored, err := sessions.GetRefreshToken(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, resp.TokenPair.RefreshToken, stored)
}

func TestLoginByEmail(t *testing.T) {
	svc, _, _, _, aliceID := newTestService(t)

	resp, err := svc.Login(context.Background(), domain.LoginRequest{Email: "alice@example.com", Password: "correct-pw"})
	require.NoError(t, err)
	assert.Equal(t, aliceID, resp.User.ID)
}

func TestLoginWrongPasswordLeavesSessionUntouched(t *testing.T) {
	svc, _, sessions, _, aliceID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, sessions.SetRefreshToken(ctx, aliceID, "existing-session-token"))

	_, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "wrong-pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := sessions.GetRefreshToken(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, "existing-session-token", stored)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), domain.LoginRequest{Username: "nobody", Password: "whatever"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoginOverwritesPreviousSession(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)

	// The first session's refresh token is no longer the session of record.
	_, err = svc.Refresh(ctx, first.TokenPair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRefreshRotatesAndInvalidatesPredecessor(t *testing.T) {
	svc, _, sessions, _, aliceID := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)
	original := resp.TokenPair.RefreshToken

	rotated, err := svc.Refresh(ctx, original)
	require.NoError(t, err)
	assert.NotEqual(t, original, rotated.RefreshToken)

	// Reusing the original refresh token is a revocation signal and clears
	// the stored session entirely.
	_, err = svc.Refresh(ctx, original)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	stored, err := sessions.GetRefreshToken(ctx, aliceID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Even the rotated token is dead now; a full re-login is required.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRefreshChainWithLatestToken(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)

	current := resp.TokenPair.RefreshToken
	for i := 0; i < 3; i++ {
		pair, err := svc.Refresh(ctx, current)
		require.NoError(t, err, "rotation %d", i)
		assert.NotEqual(t, current, pair.RefreshToken)
		current = pair.RefreshToken
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	maker := testMaker(t, -time.Minute)
	svc := NewAuthService(users, sessions, maker)

	expired, _, err := maker.IssueRefresh("user-1")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	svc, _, _, _, aliceID := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, aliceID))

	_, err = svc.Refresh(ctx, resp.TokenPair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, _, _, aliceID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, aliceID))
	require.NoError(t, svc.Logout(ctx, aliceID))
	require.NoError(t, svc.Logout(ctx, "no-such-user"))
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, resp.TokenPair.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrSessionRevoked)
		}
	}
	// The compare-and-swap admits exactly one winner for the same token.
	assert.Equal(t, 1, succeeded)
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, sessions, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		FullName: "Bob",
		Password: "bob-password",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)

	// Registration does not start a session.
	stored, err := sessions.GetRefreshToken(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	resp, err := svc.Login(ctx, domain.LoginRequest{Username: "bob", Password: "bob-password"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		FullName: "Another Alice",
		Password: "some-password",
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestChangePassword(t *testing.T) {
	svc, _, _, _, aliceID := newTestService(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, aliceID, domain.ChangePasswordRequest{
		OldPassword: "wrong-pw",
		NewPassword: "new-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, aliceID, domain.ChangePasswordRequest{
		OldPassword: "correct-pw",
		NewPassword: "new-password",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "correct-pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "alice", Password: "new-password"})
	require.NoError(t, err)
}

func TestCurrentUser(t *testing.T) {
	svc, _, _, _, aliceID := newTestService(t)

	user, err := svc.CurrentUser(context.Background(), aliceID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.CurrentUser(context.Background(), "no-such-user")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
