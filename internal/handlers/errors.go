package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bar_backoffice/internal/middleware"
	"bar_backoffice/internal/models"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps the service error taxonomy onto HTTP responses.
// Settlement failures are checked first since they usually wrap a data error.
func respondServiceError(c *gin.Context, op string, err error) {
	utils.LogError(err, op)
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Resource not found.", err.Error()))
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidRole):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Input validation failed.", err.Error()))
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInvalidTransition, "Status transition is not allowed.", err.Error()))
	case errors.Is(err, services.ErrUsernameExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Username already exists.", err.Error()))
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Resource was modified concurrently.", err.Error()))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Access to this resource is not allowed.", ""))
	case errors.Is(err, services.ErrSettlementFailed):
		utils.RespondWithError(c, utils.NewRetryableAPIError(http.StatusServiceUnavailable, utils.ErrCodeSettlementFailed, "Table could not be settled, nothing was changed.", err.Error()))
	case errors.Is(err, services.ErrDataUnavailable):
		utils.RespondWithError(c, utils.NewRetryableAPIError(http.StatusServiceUnavailable, utils.ErrCodeDataUnavailable, "Data source is unavailable.", ""))
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUserInactive):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid username or password.", ""))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal error.", ""))
	}
}

// parseIDParam reads a positive int64 path parameter.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := utils.StrToPositiveInt64(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", err.Error()))
		return 0, false
	}
	return id, true
}

// parseOptionalInt reads an optional positive integer query parameter.
func parseOptionalInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", name+" must be a positive integer"))
		return 0, false
	}
	return v, true
}

func sessionOrAbort(c *gin.Context) (models.Session, bool) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "Missing session in context"))
		return models.Session{}, false
	}
	return sess, true
}
