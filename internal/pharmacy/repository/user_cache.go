package repository

import (
	"context"
	"database/sql"

	"github.com/curamed/curamed-backend/pkg/database"
)

// CachedUser is event-synced user data kept locally so the audit trail can
// show actor names without calling the user service.
type CachedUser struct {
	UserID    string  `db:"user_id" json:"user_id"`
	FirstName string  `db:"first_name" json:"first_name"`
	LastName  string  `db:"last_name" json:"last_name"`
	Email     *string `db:"email" json:"email,omitempty"`
	RoleName  *string `db:"role_name" json:"role_name,omitempty"`
}

// FullName returns the user's full name
func (u *CachedUser) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserCacheRepository handles user cache persistence
type UserCacheRepository struct {
	db *database.DB
}

// NewUserCacheRepository creates a new user cache repository
func NewUserCacheRepository(db *database.DB) *UserCacheRepository {
	return &UserCacheRepository{db: db}
}

// Set creates or updates a cached user
func (r *UserCacheRepository) Set(ctx context.Context, user *CachedUser) error {
	query := `
		INSERT INTO user_cache (user_id, first_name, last_name, email, role_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET first_name = $2, last_name = $3, email = $4, role_name = $5, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, user.UserID, user.FirstName, user.LastName, user.Email, user.RoleName)
	return err
}

// Get gets a cached user by ID. Returns nil if the user is not cached.
func (r *UserCacheRepository) Get(ctx context.Context, userID string) (*CachedUser, error) {
	var user CachedUser
	query := `SELECT * FROM user_cache WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Delete deletes a cached user
func (r *UserCacheRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM user_cache WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
