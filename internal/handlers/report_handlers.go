package handlers

import (
	"fmt"
	"net/http"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

const DefaultReportDateLayout = "2006-01-02"

// ReportHandler serves the sales ledger.
type ReportHandler struct {
	sales services.SalesService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(ss services.SalesService) *ReportHandler {
	return &ReportHandler{sales: ss}
}

// parseReportTime accepts RFC3339 or a bare date. The upper bound is exclusive,
// so a bare "to" date moves to the next midnight to cover the whole day.
func parseReportTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(DefaultReportDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or %s, got %q", DefaultReportDateLayout, raw)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// parseReportPeriod reads the from/to query pair.
func parseReportPeriod(c *gin.Context) (from, to *time.Time, ok bool) {
	from, err := parseReportTime(c.Query("from"), false)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid from date.", err.Error()))
		return nil, nil, false
	}
	to, err = parseReportTime(c.Query("to"), true)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid to date.", err.Error()))
		return nil, nil, false
	}
	return from, to, true
}

// GetSettlements lists closed tabs, newest first.
func (h *ReportHandler) GetSettlements(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	var filters models.SalesFilters
	if filters.From, filters.To, ok = parseReportPeriod(c); !ok {
		return
	}
	if tableIDStr := c.Query("table_id"); tableIDStr != "" {
		tableID, err := utils.StrToPositiveInt64(tableIDStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid table_id format.", err.Error()))
			return
		}
		filters.TableID = &tableID
	}
	if filters.Page, ok = parseOptionalInt(c, "page"); !ok {
		return
	}
	if filters.PageSize, ok = parseOptionalInt(c, "page_size"); !ok {
		return
	}

	page, err := h.sales.ListSettlements(c.Request.Context(), sess, filters)
	if err != nil {
		respondServiceError(c, "GetSettlements: Error from sales.ListSettlements", err)
		return
	}
	if page.Settlements == nil {
		page.Settlements = []models.Settlement{}
	}
	c.JSON(http.StatusOK, page)
}

// GetSalesSummary aggregates revenue over the requested period.
func (h *ReportHandler) GetSalesSummary(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	from, to, ok := parseReportPeriod(c)
	if !ok {
		return
	}

	summary, err := h.sales.Summary(c.Request.Context(), sess, from, to)
	if err != nil {
		respondServiceError(c, "GetSalesSummary: Error from sales.Summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
