package handlers

import (
	"net/http"

	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

// SettingHandler serves the establishment settings page.
type SettingHandler struct {
	establishments services.EstablishmentService
}

// NewSettingHandler creates a new SettingHandler.
func NewSettingHandler(es services.EstablishmentService) *SettingHandler {
	return &SettingHandler{establishments: es}
}

// GetEstablishment returns the caller's establishment and its settings.
func (h *SettingHandler) GetEstablishment(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	est, err := h.establishments.GetEstablishment(c.Request.Context(), sess)
	if err != nil {
		respondServiceError(c, "GetEstablishment: Error from establishments.GetEstablishment", err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// UpdateEstablishment applies a partial settings update.
func (h *SettingHandler) UpdateEstablishment(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var req services.UpdateEstablishmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateEstablishment: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	est, err := h.establishments.UpdateEstablishment(c.Request.Context(), sess, req)
	if err != nil {
		respondServiceError(c, "UpdateEstablishment: Error from establishments.UpdateEstablishment", err)
		return
	}
	c.JSON(http.StatusOK, est)
}
