package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bar_backoffice/internal/models"

	"github.com/lib/pq" // For pq.Error
)

// AuthRepository defines the interface for authentication-related database operations.
type AuthRepository interface {
	CreateUser(ctx context.Context, executor SQLExecutor, user *models.User, hashedPassword string) (int64, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) // Returns User, HashedPassword, Error
	FindUserByID(ctx context.Context, userID int64) (*models.User, error)
}

// authRepository implements the AuthRepository interface.
type authRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

// CreateUser inserts a new active staff login for an establishment.
func (r *authRepository) CreateUser(ctx context.Context, executor SQLExecutor, user *models.User, hashedPassword string) (int64, error) {
	query := `INSERT INTO users (establishment_id, username, password_hash, full_name, role, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
	          RETURNING id`

	currentTime := time.Now()
	var userID int64
	err := executor.QueryRowContext(ctx, query,
		user.EstablishmentID,
		user.Username,
		hashedPassword,
		user.FullName, // Can be nil
		user.Role,
		currentTime,
	).Scan(&userID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: %s (constraint: %s)", ErrDuplicateKey, pqErr.Message, pqErr.Constraint)
		}
		return 0, dbError("creating user", err)
	}
	user.ID = userID
	user.IsActive = true
	user.CreatedAt = currentTime
	user.UpdatedAt = currentTime
	return userID, nil
}

const userColumns = `id, establishment_id, username, password_hash, full_name, role, is_active, created_at, updated_at`

func scanUser(row scanner, user *models.User) (string, error) {
	var hashedPassword string
	var fullName sql.NullString
	err := row.Scan(&user.ID, &user.EstablishmentID, &user.Username, &hashedPassword, &fullName,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return "", err
	}
	if fullName.Valid {
		name := fullName.String
		user.FullName = &name
	}
	return hashedPassword, nil
}

// FindUserByUsername retrieves a user and their password hash.
func (r *authRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	hashedPassword, err := scanUser(r.db.QueryRowContext(ctx, query, username), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", dbError(fmt.Sprintf("finding user by username %s", username), err)
	}
	return user, hashedPassword, nil
}

// FindUserByID retrieves a user profile. The password hash is not returned.
func (r *authRepository) FindUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if _, err := scanUser(r.db.QueryRowContext(ctx, query, userID), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(fmt.Sprintf("finding user by ID %d", userID), err)
	}
	return user, nil
}
