package identity

import (
	"context"
	"time"
)

// Role names are a small fixed vocabulary. RoleUser is granted to every
// account; RoleAdmin is additionally granted to the first account ever
// registered.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is Plume's canonical security principal.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
}

// Profile holds the public-facing fields of an account. Created empty at
// registration; avatar bytes live in external object storage, only the URL
// is recorded here.
type Profile struct {
	UserID      string
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// Role pairs a role name with its human-readable description for display.
type Role struct {
	Name        string
	Description string
}

// ResetRecord is the live password-reset entry of the one-time code ledger.
// Code is the public value embedded in the reset link; TokenDigest is the
// SHA-256 hex digest of the private server-side token (plaintext never stored).
type ResetRecord struct {
	Code        string
	TokenDigest string
	ExpiresAt   time.Time
}

// CreateUserInput describes a registration request. Email must be unique
// after normalization; PasswordHash is the already-computed Argon2id hash.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Now          time.Time
}

// Store is the identity persistence boundary.
//
// One-time code ledger semantics (email verification and password reset):
// at most one live entry of each kind per user; setting a new entry
// overwrites the previous one; consumption clears the entry; an expired
// entry is never accepted.
type Store interface {
	// CreateUser inserts the user, an empty profile, and the initial role
	// grants (RoleUser, plus RoleAdmin for the first account).
	// Returns a ConflictError when the normalized email is already taken.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)

	// RolesFor returns the role names granted to the user (possibly empty).
	// Always a fresh read; grants can change between requests.
	RolesFor(ctx context.Context, userID string) ([]string, error)
	// RoleDetailsFor returns role name + description pairs for display.
	RoleDetailsFor(ctx context.Context, userID string) ([]Role, error)

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// SetVerificationCode records a fresh email-verification code,
	// overwriting any previous live code for the user.
	SetVerificationCode(ctx context.Context, userID, code string, expiresAt time.Time) error
	// ConsumeVerificationCode marks the user verified when email+code match a
	// live (unexpired) entry and clears the entry. ErrNotFound otherwise.
	ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (User, error)

	// SetPasswordReset records a fresh reset code + private token digest,
	// overwriting any previous live reset for the user.
	SetPasswordReset(ctx context.Context, userID, code, tokenDigest string, expiresAt time.Time) error
	// GetUserByResetCode looks up the owner of a reset code regardless of
	// expiry; the caller decides between expired and live entries.
	GetUserByResetCode(ctx context.Context, code string) (User, ResetRecord, error)
	// CompletePasswordReset stores the new hash and clears the reset entry.
	CompletePasswordReset(ctx context.Context, userID, newHash string) error
}
