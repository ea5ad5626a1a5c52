package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests. Safe for
// concurrent use. All reads return copies; callers never observe internal
// mutation.
//
// Unlike the Postgres store, CreateUser holds the store lock for the whole
// operation, so the "first account gets the admin role" check cannot race.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*memUser // keyed by user ID
	byEmail  map[string]string   // normalized email -> user ID
	profiles map[string]Profile
	roles    map[string][]string // user ID -> role names, sorted
	roleDefs map[string]string   // role name -> description
}

type memUser struct {
	User

	verificationCode    string
	verificationExpires time.Time

	resetCode        string
	resetTokenDigest string
	resetExpires     time.Time
}

// NewMemoryStore returns an empty MemoryStore with the built-in role
// vocabulary registered.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*memUser),
		byEmail:  make(map[string]string),
		profiles: make(map[string]Profile),
		roles:    make(map[string][]string),
		roleDefs: map[string]string{
			RoleUser:  "Standard account",
			RoleAdmin: "Platform administrator",
		},
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	norm := NormalizeEmail(email)
	if _, taken := s.byEmail[norm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{
		ID:           id,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Verified:     false,
		CreatedAt:    now,
	}
	first := len(s.users) == 0

	s.users[id] = &memUser{User: u}
	s.byEmail[norm] = id
	s.profiles[id] = Profile{UserID: id}

	roles := []string{RoleUser}
	if first {
		roles = []string{RoleAdmin, RoleUser}
	}
	s.roles[id] = roles

	return u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return mu.User, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByEmail", Resource: "user"}
	}
	return s.users[id].User, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, NotFoundError{Op: "identity.GetProfile", Resource: "profile"}
	}
	return p, nil
}

func (s *MemoryStore) RolesFor(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return nil, NotFoundError{Op: "identity.RolesFor", Resource: "user"}
	}
	roles := s.roles[userID]
	out := make([]string, len(roles))
	copy(out, roles)
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) RoleDetailsFor(ctx context.Context, userID string) ([]Role, error) {
	names, err := s.RolesFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Role, 0, len(names))
	for _, name := range names {
		out = append(out, Role{Name: name, Description: s.roleDefs[name]})
	}
	return out, nil
}

// GrantRole adds a role grant; it exists so tests and dev tooling can change
// membership between requests.
func (s *MemoryStore) GrantRole(userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return NotFoundError{Op: "identity.GrantRole", Resource: "user"}
	}
	for _, r := range s.roles[userID] {
		if r == role {
			return nil
		}
	}
	s.roles[userID] = append(s.roles[userID], role)
	return nil
}

// RevokeAllRoles removes every grant for the user; used to model a disabled
// account.
func (s *MemoryStore) RevokeAllRoles(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return NotFoundError{Op: "identity.RevokeAllRoles", Resource: "user"}
	}
	s.roles[userID] = nil
	return nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: "identity.UpdatePasswordHash", Resource: "user"}
	}
	mu.PasswordHash = newHash
	return nil
}

func (s *MemoryStore) SetVerificationCode(ctx context.Context, userID, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: "identity.SetVerificationCode", Resource: "user"}
	}
	mu.verificationCode = code
	mu.verificationExpires = expiresAt
	return nil
}

func (s *MemoryStore) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (User, error) {
	const op = "identity.ConsumeVerificationCode"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "verification code"}
	}
	mu := s.users[id]
	if mu.verificationCode == "" || mu.verificationCode != code || !mu.verificationExpires.After(now) {
		return User{}, NotFoundError{Op: op, Resource: "verification code"}
	}

	mu.Verified = true
	mu.verificationCode = ""
	mu.verificationExpires = time.Time{}
	return mu.User, nil
}

func (s *MemoryStore) SetPasswordReset(ctx context.Context, userID, code, tokenDigest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: "identity.SetPasswordReset", Resource: "user"}
	}
	mu.resetCode = code
	mu.resetTokenDigest = tokenDigest
	mu.resetExpires = expiresAt
	return nil
}

func (s *MemoryStore) GetUserByResetCode(ctx context.Context, code string) (User, ResetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if code == "" {
		return User{}, ResetRecord{}, NotFoundError{Op: "identity.GetUserByResetCode", Resource: "reset code"}
	}
	for _, mu := range s.users {
		if mu.resetCode == code {
			return mu.User, ResetRecord{
				Code:        mu.resetCode,
				TokenDigest: mu.resetTokenDigest,
				ExpiresAt:   mu.resetExpires,
			}, nil
		}
	}
	return User{}, ResetRecord{}, NotFoundError{Op: "identity.GetUserByResetCode", Resource: "reset code"}
}

func (s *MemoryStore) CompletePasswordReset(ctx context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: "identity.CompletePasswordReset", Resource: "user"}
	}
	mu.PasswordHash = newHash
	mu.resetCode = ""
	mu.resetTokenDigest = ""
	mu.resetExpires = time.Time{}
	return nil
}

var _ Store = (*MemoryStore)(nil)
