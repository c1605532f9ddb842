package handlers

import (
	"net/http"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
)

// LedgerHandler exposes tables, order lines and the kitchen pipeline.
type LedgerHandler struct {
	ledger services.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ls services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ls}
}

// --- Tables ---

// ListTables returns every table of the caller's establishment with its active lines.
func (h *LedgerHandler) ListTables(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tables, err := h.ledger.ListTables(c.Request.Context(), sess)
	if err != nil {
		respondServiceError(c, "ListTables: Error from ledger.ListTables", err)
		return
	}
	if tables == nil {
		tables = []models.Table{}
	}
	c.JSON(http.StatusOK, tables)
}

// GetTable handles fetching a single table by ID.
func (h *LedgerHandler) GetTable(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	table, err := h.ledger.GetTable(c.Request.Context(), sess, tableID)
	if err != nil {
		respondServiceError(c, "GetTable: Error from ledger.GetTable for ID "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetBill returns the derived bill of a table without settling it.
func (h *LedgerHandler) GetBill(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bill, err := h.ledger.ComputeBill(c.Request.Context(), sess, tableID)
	if err != nil {
		respondServiceError(c, "GetBill: Error from ledger.ComputeBill for table "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

// AddOrderLine puts a product on a table's tab.
func (h *LedgerHandler) AddOrderLine(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.AddOrderLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "AddOrderLine: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	line, err := h.ledger.AddOrderLine(c.Request.Context(), sess, tableID, req)
	if err != nil {
		respondServiceError(c, "AddOrderLine: Error from ledger.AddOrderLine for table "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

// CloseTable settles every active line of a table and frees it.
func (h *LedgerHandler) CloseTable(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.CloseTable(c.Request.Context(), sess, tableID)
	if err != nil {
		respondServiceError(c, "CloseTable: Error from ledger.CloseTable for table "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CallWaiter flags a table as calling for service.
func (h *LedgerHandler) CallWaiter(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tableID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	line, err := h.ledger.CallWaiter(c.Request.Context(), sess, tableID)
	if err != nil {
		respondServiceError(c, "CallWaiter: Error from ledger.CallWaiter for table "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

// --- Order lines ---

// AdvanceOrderLineStatus moves a line one step along the kitchen pipeline.
func (h *LedgerHandler) AdvanceOrderLineStatus(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	lineID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "AdvanceOrderLineStatus: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}
	if !req.Status.IsValid() {
		utils.RespondValidationFailed(c, "unknown status "+string(req.Status))
		return
	}

	line, err := h.ledger.AdvanceOrderLineStatus(c.Request.Context(), sess, lineID, req.Status)
	if err != nil {
		respondServiceError(c, "AdvanceOrderLineStatus: Error from ledger.AdvanceOrderLineStatus for line "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// CancelOrderLine removes a line from the open tab.
func (h *LedgerHandler) CancelOrderLine(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	lineID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	line, err := h.ledger.CancelOrderLine(c.Request.Context(), sess, lineID)
	if err != nil {
		respondServiceError(c, "CancelOrderLine: Error from ledger.CancelOrderLine for line "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, line)
}

// --- Kitchen & waiter calls ---

// KitchenQueue lists the item lines still waiting on the kitchen.
func (h *LedgerHandler) KitchenQueue(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	tickets, err := h.ledger.KitchenQueue(c.Request.Context(), sess)
	if err != nil {
		respondServiceError(c, "KitchenQueue: Error from ledger.KitchenQueue", err)
		return
	}
	if tickets == nil {
		tickets = []models.KitchenTicket{}
	}
	c.JSON(http.StatusOK, tickets)
}

// ListWaiterCalls lists the unanswered call-waiter requests.
func (h *LedgerHandler) ListWaiterCalls(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	calls, err := h.ledger.ListWaiterCalls(c.Request.Context(), sess)
	if err != nil {
		respondServiceError(c, "ListWaiterCalls: Error from ledger.ListWaiterCalls", err)
		return
	}
	if calls == nil {
		calls = []models.WaiterCall{}
	}
	c.JSON(http.StatusOK, calls)
}

// AcknowledgeWaiterCall marks a call as answered.
func (h *LedgerHandler) AcknowledgeWaiterCall(c *gin.Context) {
	sess, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	lineID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	line, err := h.ledger.AcknowledgeWaiterCall(c.Request.Context(), sess, lineID)
	if err != nil {
		respondServiceError(c, "AcknowledgeWaiterCall: Error from ledger.AcknowledgeWaiterCall for line "+c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, line)
}
