package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) LoginUser(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*services.AuthResponse)
	return resp, args.Error(1)
}

func (m *MockAuthService) RegisterUser(ctx context.Context, sess models.Session, req services.RegisterUserRequest) (*models.User, error) {
	args := m.Called(ctx, sess, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockAuthService) GetUserProfile(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockAuthService) EnsureManager(ctx context.Context, establishmentID int64, username, password string) error {
	return m.Called(ctx, establishmentID, username, password).Error(0)
}

func authRouter(as services.AuthService, sess models.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(as)
	r.POST("/auth/login", h.LoginUser)
	g := r.Group("/", withSession(sess))
	g.GET("/auth/me", h.GetCurrentUser)
	g.POST("/auth/users", h.RegisterUser)
	return r
}

func TestAuthHandler_LoginUser(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setup  func(*MockAuthService)
		status int
	}{
		{
			name: "ok",
			body: `{"username":"anna","password":"secret-pass"}`,
			setup: func(as *MockAuthService) {
				as.On("LoginUser", mock.Anything, services.LoginRequest{Username: "anna", Password: "secret-pass"}).
					Return(&services.AuthResponse{User: &models.User{ID: 1, Username: "anna"}, AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil)
			},
			status: http.StatusOK,
		},
		{
			name: "wrong password",
			body: `{"username":"anna","password":"nope"}`,
			setup: func(as *MockAuthService) {
				as.On("LoginUser", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidCredentials)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing password",
			body:   `{"username":"anna"}`,
			setup:  func(*MockAuthService) {},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := new(MockAuthService)
			tt.setup(as)

			w := doRequest(authRouter(as, waiter), http.MethodPost, "/auth/login", tt.body)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			as.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	as := new(MockAuthService)
	as.On("GetUserProfile", mock.Anything, waiter.UserID).Return(&models.User{ID: waiter.UserID, Username: "anna", Role: models.RoleWaiter}, nil)

	w := doRequest(authRouter(as, waiter), http.MethodGet, "/auth/me", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"anna"`)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestAuthHandler_RegisterUser(t *testing.T) {
	manager := models.Session{EstablishmentID: 1, UserID: 1, Role: models.RoleManager}
	req := services.RegisterUserRequest{Username: "ben", Password: "longenough", Role: models.RoleKitchen}

	t.Run("created", func(t *testing.T) {
		as := new(MockAuthService)
		as.On("RegisterUser", mock.Anything, manager, req).Return(&models.User{ID: 9, Username: "ben", Role: models.RoleKitchen}, nil)

		w := doRequest(authRouter(as, manager), http.MethodPost, "/auth/users", `{"username":"ben","password":"longenough","role":"kitchen"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("username taken", func(t *testing.T) {
		as := new(MockAuthService)
		as.On("RegisterUser", mock.Anything, manager, req).Return(nil, services.ErrUsernameExists)

		w := doRequest(authRouter(as, manager), http.MethodPost, "/auth/users", `{"username":"ben","password":"longenough","role":"kitchen"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		as := new(MockAuthService)

		w := doRequest(authRouter(as, manager), http.MethodPost, "/auth/users", `{"username":"ben","password":"short","role":"kitchen"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		as.AssertNotCalled(t, "RegisterUser", mock.Anything, mock.Anything, mock.Anything)
	})
}
