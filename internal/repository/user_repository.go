package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-scheduling-api/internal/models"
)

const (
	userColumns    = `id, email, password_hash, full_name, role, active, last_login, created_at, updated_at`
	sessionColumns = `id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent`
)

// UserRepository stores login accounts and their refresh token sessions.
// Lookups that miss return sql.ErrNoRows unwrapped.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(ctx, "lower(email) = lower($1)", email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findUser(ctx, "id = $1", id)
}

func (r *UserRepository) findUser(ctx context.Context, where string, arg string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, ts)
	return classify("update last login", err)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt)
	if err != nil {
		return classify("update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateRefreshToken inserts a session, assigning an ID and creation time
// when the caller left them empty.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (` + sessionColumns + `) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	_, err := r.db.NamedExecContext(ctx, query, token)
	return classify("create refresh token", err)
}

func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken revokes one live session. It reports false when the
// session was already revoked, which makes rotation single use even when
// two refresh calls race.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND NOT revoked`
	res, err := r.db.ExecContext(ctx, query, id, revokedAt)
	if err != nil {
		return false, classify("revoke refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return n == 1, nil
}

func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND NOT revoked`
	_, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC())
	return classify("revoke user sessions", err)
}
