package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateUser(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := st.CreateUser(ctx, CreateUserInput{
		Email:        "Ada@Example.com",
		PasswordHash: "$argon2id$fake",
		Now:          now,
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.False(t, first.Verified)

	roles, err := st.RolesFor(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, []string{RoleAdmin, RoleUser}, roles)

	// Profile is created empty alongside the user.
	p, err := st.GetProfile(ctx, first.ID)
	require.NoError(t, err)
	require.Nil(t, p.DisplayName)

	second, err := st.CreateUser(ctx, CreateUserInput{
		Email:        "bob@example.com",
		PasswordHash: "$argon2id$fake",
		Now:          now,
	})
	require.NoError(t, err)

	roles, err = st.RolesFor(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, []string{RoleUser}, roles)
}

func TestMemoryStoreEmailConflict(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	// Case and whitespace differences collide after normalization.
	_, err = st.CreateUser(ctx, CreateUserInput{Email: "  ADA@example.com ", PasswordHash: "h"})
	require.True(t, IsConflict(err))
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreLookups(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	u, err := st.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	byID, err := st.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)

	byEmail, err := st.GetUserByEmail(ctx, "ADA@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = st.GetUserByID(ctx, "missing")
	require.True(t, IsNotFound(err))
}

func TestMemoryStoreVerificationCode(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	u, err := st.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", PasswordHash: "h", Now: now})
	require.NoError(t, err)

	require.NoError(t, st.SetVerificationCode(ctx, u.ID, "111111", now.Add(5*time.Minute)))

	// Reissue overwrites: the old code stops working.
	require.NoError(t, st.SetVerificationCode(ctx, u.ID, "222222", now.Add(5*time.Minute)))
	_, err = st.ConsumeVerificationCode(ctx, u.Email, "111111", now)
	require.True(t, IsNotFound(err))

	// Expired codes are never accepted.
	_, err = st.ConsumeVerificationCode(ctx, u.Email, "222222", now.Add(6*time.Minute))
	require.True(t, IsNotFound(err))

	got, err := st.ConsumeVerificationCode(ctx, u.Email, "222222", now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, got.Verified)

	// The entry is cleared on consumption; replay fails.
	_, err = st.ConsumeVerificationCode(ctx, u.Email, "222222", now.Add(time.Minute))
	require.True(t, IsNotFound(err))
}

func TestMemoryStorePasswordReset(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	u, err := st.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", PasswordHash: "old", Now: now})
	require.NoError(t, err)

	require.NoError(t, st.SetPasswordReset(ctx, u.ID, "code-1", "digest-1", now.Add(5*time.Minute)))
	require.NoError(t, st.SetPasswordReset(ctx, u.ID, "code-2", "digest-2", now.Add(5*time.Minute)))

	// Only the latest entry is live.
	_, _, err = st.GetUserByResetCode(ctx, "code-1")
	require.True(t, IsNotFound(err))

	got, rec, err := st.GetUserByResetCode(ctx, "code-2")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "digest-2", rec.TokenDigest)

	require.NoError(t, st.CompletePasswordReset(ctx, u.ID, "new"))

	updated, err := st.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new", updated.PasswordHash)

	// Completion clears the ledger entry.
	_, _, err = st.GetUserByResetCode(ctx, "code-2")
	require.True(t, IsNotFound(err))
}

func TestMemoryStoreResetCodeVisibleAfterExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	u, err := st.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", PasswordHash: "h", Now: now})
	require.NoError(t, err)
	require.NoError(t, st.SetPasswordReset(ctx, u.ID, "code", "digest", now.Add(-time.Minute)))

	// Lookup ignores expiry; the caller distinguishes live from stale.
	got, rec, err := st.GetUserByResetCode(ctx, "code")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.True(t, rec.ExpiresAt.Before(now))
}

func TestMemoryStoreRoleGrants(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.CreateUser(ctx, CreateUserInput{Email: "first@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	u, err := st.CreateUser(ctx, CreateUserInput{Email: "ada@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, st.GrantRole(u.ID, RoleAdmin))
	require.NoError(t, st.GrantRole(u.ID, RoleAdmin)) // idempotent

	roles, err := st.RolesFor(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{RoleAdmin, RoleUser}, roles)

	details, err := st.RoleDetailsFor(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	require.Equal(t, RoleAdmin, details[0].Name)
	require.NotEmpty(t, details[0].Description)

	require.NoError(t, st.RevokeAllRoles(u.ID))
	roles, err = st.RolesFor(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, roles)
}
