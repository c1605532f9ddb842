package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSalesService struct {
	mock.Mock
}

func (m *MockSalesService) ListSettlements(ctx context.Context, sess models.Session, filters models.SalesFilters) (*services.SettlementPage, error) {
	args := m.Called(ctx, sess, filters)
	page, _ := args.Get(0).(*services.SettlementPage)
	return page, args.Error(1)
}

func (m *MockSalesService) Summary(ctx context.Context, sess models.Session, from, to *time.Time) (*models.SalesSummary, error) {
	args := m.Called(ctx, sess, from, to)
	summary, _ := args.Get(0).(*models.SalesSummary)
	return summary, args.Error(1)
}

func reportRouter(ss services.SalesService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewReportHandler(ss)
	g := r.Group("/", withSession(waiter))
	g.GET("/sales", h.GetSettlements)
	g.GET("/sales/summary", h.GetSalesSummary)
	return r
}

func TestParseReportTime(t *testing.T) {
	got, err := parseReportTime("", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseReportTime("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseReportTime("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseReportTime("2024-03-01T18:30:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Hour())

	_, err = parseReportTime("01/03/2024", false)
	assert.Error(t, err)
}

func TestReportHandler_GetSettlements(t *testing.T) {
	ss := new(MockSalesService)
	ss.On("ListSettlements", mock.Anything, waiter, mock.MatchedBy(func(f models.SalesFilters) bool {
		return f.From != nil && f.To == nil && f.TableID != nil && *f.TableID == 4 && f.Page == 2 && f.PageSize == 0
	})).Return(&services.SettlementPage{Total: 1, Page: 2, PageSize: 50}, nil)

	w := doRequest(reportRouter(ss), http.MethodGet, "/sales?from=2024-03-01&table_id=4&page=2", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"settlements":[]`)
	ss.AssertExpectations(t)
}

func TestReportHandler_BadQuery(t *testing.T) {
	ss := new(MockSalesService)
	r := reportRouter(ss)

	for _, path := range []string{"/sales?from=yesterday", "/sales?page=0", "/sales?table_id=x", "/sales/summary?to=never"} {
		w := doRequest(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	ss.AssertNotCalled(t, "ListSettlements", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportHandler_GetSalesSummary(t *testing.T) {
	ss := new(MockSalesService)
	ss.On("Summary", mock.Anything, waiter, mock.Anything, mock.Anything).Return(&models.SalesSummary{
		Count: 2, Revenue: decimal.RequireFromString("110.00"),
	}, nil)

	w := doRequest(reportRouter(ss), http.MethodGet, "/sales/summary?from=2024-03-01&to=2024-03-31", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestReportHandler_InvertedPeriod(t *testing.T) {
	ss := new(MockSalesService)
	ss.On("Summary", mock.Anything, waiter, mock.Anything, mock.Anything).Return(nil, services.ErrValidation)

	w := doRequest(reportRouter(ss), http.MethodGet, "/sales/summary?from=2024-03-31&to=2024-03-01", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
