package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"
	"bar_backoffice/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameExists = errors.New("username already exists")
	ErrInvalidRole    = errors.New("specified role is not known")
)

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterUserRequest DTO, used by managers to create staff logins.
type RegisterUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role" binding:"required"`
}

// AuthResponse DTO
type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// --- AuthService Interface ---
type AuthService interface {
	LoginUser(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	RegisterUser(ctx context.Context, sess models.Session, req RegisterUserRequest) (*models.User, error)
	GetUserProfile(ctx context.Context, userID int64) (*models.User, error)
	// EnsureManager creates the first manager login of an establishment when
	// the username is still free. It is a no-op otherwise.
	EnsureManager(ctx context.Context, establishmentID int64, username, password string) error
}

// --- authService Implementation ---
type authService struct {
	authRepo      repositories.AuthRepository
	tx            repositories.Transactor
	jwtSecret     []byte
	jwtExpiration time.Duration
	queryTimeout  time.Duration
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(authRepo repositories.AuthRepository, tx repositories.Transactor, jwtSecret string, jwtExp, queryTimeout time.Duration) AuthService {
	return &authService{
		authRepo:      authRepo,
		tx:            tx,
		jwtSecret:     []byte(jwtSecret),
		jwtExpiration: jwtExp,
		queryTimeout:  queryTimeout,
	}
}

func (s *authService) createUser(ctx context.Context, user *models.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		_, err := s.authRepo.CreateUser(ctx, exec, user, string(hashed))
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return fmt.Errorf("%w: %s", ErrUsernameExists, user.Username)
		}
		return mapRepoError("creating user", err)
	}
	return nil
}

// LoginUser handles user login and token generation.
func (s *authService) LoginUser(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, storedHashedPassword, err := s.authRepo.FindUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, mapRepoError("login attempt", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(storedHashedPassword), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	accessToken, err := utils.GenerateAccessToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username, user.Role, user.EstablishmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	user.PasswordHash = ""
	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(s.jwtExpiration),
	}, nil
}

// RegisterUser adds a staff login to the caller's establishment.
func (s *authService) RegisterUser(ctx context.Context, sess models.Session, req RegisterUserRequest) (*models.User, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if sess.Role != models.RoleManager {
		return nil, fmt.Errorf("%w: only managers create logins", ErrForbidden)
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidRole, req.Role)
	}
	if utils.IsEmpty(req.Username) {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	user := &models.User{
		EstablishmentID: sess.EstablishmentID,
		Username:        strings.TrimSpace(req.Username),
		Role:            role,
	}
	if name := strings.TrimSpace(req.FullName); name != "" {
		user.FullName = &name
	}
	if err := s.createUser(ctx, user, req.Password); err != nil {
		return nil, err
	}
	utils.LogInfo("Staff login created", map[string]interface{}{"user_id": user.ID, "role": role, "created_by": sess.UserID})
	return user, nil
}

// GetUserProfile retrieves a user's profile by their ID.
func (s *authService) GetUserProfile(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.authRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(fmt.Sprintf("user %d", userID), err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) EnsureManager(ctx context.Context, establishmentID int64, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, _, err := s.authRepo.FindUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return mapRepoError("looking up seed manager", err)
	}

	user := &models.User{EstablishmentID: establishmentID, Username: username, Role: models.RoleManager}
	if err := s.createUser(ctx, user, password); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil
		}
		return err
	}
	utils.LogInfo("Seeded manager login", map[string]interface{}{"username": username, "establishment_id": establishmentID})
	return nil
}
