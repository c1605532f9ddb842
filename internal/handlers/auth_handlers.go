package handlers

import (
	"net/http"

	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// RegisterUser lets a manager create a staff login in their establishment.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req services.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "RegisterUser: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	user, err := h.authService.RegisterUser(c.Request.Context(), sess, req)
	if err != nil {
		respondServiceError(c, "RegisterUser: Error from authService.RegisterUser", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// LoginUser handles user login.
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "LoginUser: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	authResp, err := h.authService.LoginUser(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "LoginUser: Error from authService.LoginUser", err)
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentUser retrieves the profile of the currently authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUserProfile(c.Request.Context(), sess.UserID)
	if err != nil {
		respondServiceError(c, "GetCurrentUser: Error from authService.GetUserProfile for userID "+utils.Int64ToStr(sess.UserID), err)
		return
	}
	c.JSON(http.StatusOK, user)
}
