package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs. It is an interface so
// tests can substitute a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
//   - The pool is owned by the caller; this store must not close it.
//   - Schema/table identifiers are validated and quoted to avoid SQL
//     injection via identifiers.
//   - CreateUser runs user insert, profile insert, and role grants in one
//     transaction. The "first account gets the admin role" check is a plain
//     count inside that transaction; two near-simultaneous first
//     registrations can in principle both observe an empty table. Known
//     limitation.
type PostgresStore struct {
	db     DB
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "plume").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db DB, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: "plume",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return st, nil
}

func (s *PostgresStore) table(name string) string {
	return fmt.Sprintf("%q.%q", s.schema, name)
}

const userColumns = "id, email, password_hash, verified, created_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt)
	return u, err
}

// CreateUser creates a new user, an empty profile, and the initial role
// grants transactionally.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	userID, err := NewULID(now)
	if err != nil {
		return User{}, fmt.Errorf("%s: new id: %w", op, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return User{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing int64
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM `+s.table("users"),
	).Scan(&existing); err != nil {
		return User{}, fmt.Errorf("%s: count: %w", op, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (id, email, email_norm, password_hash, verified, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		userID, email, NormalizeEmail(email), in.PasswordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, fmt.Errorf("%s: insert user: %w", op, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.table("profiles")+` (user_id) VALUES ($1)`,
		userID,
	); err != nil {
		return User{}, fmt.Errorf("%s: insert profile: %w", op, err)
	}

	roles := []string{RoleUser}
	if existing == 0 {
		roles = append(roles, RoleAdmin)
	}
	for _, role := range roles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO `+s.table("user_roles")+` (user_id, role) VALUES ($1, $2)`,
			userID, role,
		); err != nil {
			return User{}, fmt.Errorf("%s: grant role: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return User{
		ID:           userID,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Verified:     false,
		CreatedAt:    now,
	}, nil
}

// GetUserByID fetches a user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.table("users")+` WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by normalized email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.table("users")+` WHERE email_norm = $1`,
		NormalizeEmail(email),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetProfile fetches a user's profile.
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	const op = "identity.GetProfile"

	var p Profile
	err := s.db.QueryRow(ctx,
		`SELECT user_id, display_name, bio, avatar_url FROM `+s.table("profiles")+` WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, NotFoundError{Op: op, Resource: "profile"}
	}
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// RolesFor returns the role names granted to userID, freshly read.
func (s *PostgresStore) RolesFor(ctx context.Context, userID string) ([]string, error) {
	const op = "identity.RolesFor"

	rows, err := s.db.Query(ctx,
		`SELECT role FROM `+s.table("user_roles")+` WHERE user_id = $1 ORDER BY role`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return roles, nil
}

// RoleDetailsFor returns role name + description pairs for display.
func (s *PostgresStore) RoleDetailsFor(ctx context.Context, userID string) ([]Role, error) {
	const op = "identity.RoleDetailsFor"

	rows, err := s.db.Query(ctx,
		`SELECT r.name, r.description
		 FROM `+s.table("roles")+` r
		 JOIN `+s.table("user_roles")+` ur ON ur.role = r.name
		 WHERE ur.user_id = $1
		 ORDER BY r.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.Name, &r.Description); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	const op = "identity.UpdatePasswordHash"

	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.table("users")+` SET password_hash = $2 WHERE id = $1`,
		userID, newHash,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// SetVerificationCode overwrites the user's live verification code.
func (s *PostgresStore) SetVerificationCode(ctx context.Context, userID, code string, expiresAt time.Time) error {
	const op = "identity.SetVerificationCode"

	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.table("users")+`
		 SET verification_code = $2, verification_expires_at = $3
		 WHERE id = $1`,
		userID, code, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// ConsumeVerificationCode marks the user verified when email+code match a
// live entry, clearing the entry in the same statement.
func (s *PostgresStore) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (User, error) {
	const op = "identity.ConsumeVerificationCode"

	u, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE `+s.table("users")+`
		 SET verified = TRUE, verification_code = NULL, verification_expires_at = NULL
		 WHERE email_norm = $1 AND verification_code = $2 AND verification_expires_at > $3
		 RETURNING `+userColumns,
		NormalizeEmail(email), code, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "verification code"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetPasswordReset overwrites the user's live reset code + token digest.
func (s *PostgresStore) SetPasswordReset(ctx context.Context, userID, code, tokenDigest string, expiresAt time.Time) error {
	const op = "identity.SetPasswordReset"

	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.table("users")+`
		 SET reset_code = $2, reset_token_digest = $3, reset_expires_at = $4
		 WHERE id = $1`,
		userID, code, tokenDigest, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// GetUserByResetCode finds the owner of a reset code regardless of expiry.
func (s *PostgresStore) GetUserByResetCode(ctx context.Context, code string) (User, ResetRecord, error) {
	const op = "identity.GetUserByResetCode"

	var (
		u   User
		rec ResetRecord
	)
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+`, reset_code, reset_token_digest, reset_expires_at
		 FROM `+s.table("users")+` WHERE reset_code = $1`,
		code,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt,
		&rec.Code, &rec.TokenDigest, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ResetRecord{}, NotFoundError{Op: op, Resource: "reset code"}
	}
	if err != nil {
		return User{}, ResetRecord{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, rec, nil
}

// CompletePasswordReset stores the new hash and clears the reset entry.
func (s *PostgresStore) CompletePasswordReset(ctx context.Context, userID, newHash string) error {
	const op = "identity.CompletePasswordReset"

	tag, err := s.db.Exec(ctx,
		`UPDATE `+s.table("users")+`
		 SET password_hash = $2, reset_code = NULL, reset_token_digest = NULL, reset_expires_at = NULL
		 WHERE id = $1`,
		userID, newHash,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
