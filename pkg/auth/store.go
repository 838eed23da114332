package auth

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huddlehq/huddle/pkg/apperrors"
)

// Store resolves presented tokens to users and manages token lifecycle.
type Store interface {
	CreateUser(username, email string) (*User, error)
	GetUser(id int64) (*User, error)
	IssueToken(userID int64, name string, expiresAt *time.Time) (string, *APIToken, error)
	ResolveToken(token string) (*User, error)
	RevokeToken(userID, tokenID int64) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, generator: NewTokenGenerator()}
}

// CreateUser registers a user.
func (s *PostgresStore) CreateUser(username, email string) (*User, error) {
	if username == "" {
		return nil, apperrors.Validationf("username is required")
	}

	user := &User{Username: username, Email: email, IsActive: true}
	err := s.db.QueryRow(`
		INSERT INTO users (username, email, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, created_at, updated_at
	`, username, email).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(id int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(`
		SELECT id, username, email, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// IssueToken mints a new API token for a user and returns the plaintext
// exactly once alongside the stored record.
func (s *PostgresStore) IssueToken(userID int64, name string, expiresAt *time.Time) (string, *APIToken, error) {
	plaintext, hash, prefix, err := s.generator.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	token := &APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		Name:        name,
		ExpiresAt:   expiresAt,
	}
	err = s.db.QueryRow(`
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, userID, hash, prefix, name, expiresAt).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}

	return plaintext, token, nil
}

// ResolveToken maps a presented token to its active user. Expired, revoked,
// unknown, and malformed tokens all resolve to the same Forbidden error so
// the response does not reveal which case applied.
func (s *PostgresStore) ResolveToken(token string) (*User, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, apperrors.Forbiddenf("invalid token")
	}

	hash := s.generator.HashToken(token)
	user := &User{}
	var expiresAt, revokedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT u.id, u.username, u.email, u.is_active, u.created_at, u.updated_at,
		       t.expires_at, t.revoked_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
	`, hash).Scan(
		&user.ID, &user.Username, &user.Email, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &expiresAt, &revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.Forbiddenf("invalid token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	if revokedAt.Valid {
		return nil, apperrors.Forbiddenf("invalid token")
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		return nil, apperrors.Forbiddenf("invalid token")
	}
	if !user.IsActive {
		return nil, apperrors.Forbiddenf("invalid token")
	}

	return user, nil
}

// RevokeToken marks a token revoked. Scoped to the owning user.
func (s *PostgresStore) RevokeToken(userID, tokenID int64) error {
	result, err := s.db.Exec(`
		UPDATE api_tokens SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, tokenID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("token not found")
	}
	return nil
}
