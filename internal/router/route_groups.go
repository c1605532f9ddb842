package router

import (
	"bar_backoffice/internal/handlers"
	"bar_backoffice/internal/middleware"
	"bar_backoffice/internal/models"

	"github.com/gin-gonic/gin"
)

var (
	managerOnly = []string{models.RoleManager}
	floorStaff  = []string{models.RoleManager, models.RoleWaiter}
	kitchenCrew = []string{models.RoleManager, models.RoleKitchen, models.RoleBar}
	everyone    = []string{models.RoleManager, models.RoleWaiter, models.RoleKitchen, models.RoleBar}
)

// SetupTableRoutes sets up the table and tab routes.
func SetupTableRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.LedgerHandler) {
	tableRoutes := authenticatedGroup.Group("/tables")
	tableRoutes.Use(middleware.RoleAuthMiddleware(floorStaff...))
	{
		tableRoutes.GET("", h.ListTables)
		tableRoutes.GET("/:id", h.GetTable)
		tableRoutes.GET("/:id/bill", h.GetBill)
		tableRoutes.POST("/:id/lines", h.AddOrderLine)
		tableRoutes.POST("/:id/close", h.CloseTable)
		tableRoutes.POST("/:id/call-waiter", h.CallWaiter)
	}
}

// SetupOrderLineRoutes sets up the order line routes. Status changes belong
// to whoever moves the plate; cancellation stays with the floor.
func SetupOrderLineRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.LedgerHandler) {
	lineRoutes := authenticatedGroup.Group("/order-lines")
	{
		lineRoutes.PATCH("/:id/status", middleware.RoleAuthMiddleware(everyone...), h.AdvanceOrderLineStatus)
		lineRoutes.POST("/:id/cancel", middleware.RoleAuthMiddleware(floorStaff...), h.CancelOrderLine)
	}
}

// SetupKitchenRoutes sets up the kitchen display routes.
func SetupKitchenRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.LedgerHandler) {
	kitchenRoutes := authenticatedGroup.Group("/kitchen")
	kitchenRoutes.Use(middleware.RoleAuthMiddleware(kitchenCrew...))
	{
		kitchenRoutes.GET("/queue", h.KitchenQueue)
	}
}

// SetupWaiterCallRoutes sets up the call-waiter routes.
func SetupWaiterCallRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.LedgerHandler) {
	callRoutes := authenticatedGroup.Group("/waiter/calls")
	callRoutes.Use(middleware.RoleAuthMiddleware(floorStaff...))
	{
		callRoutes.GET("", h.ListWaiterCalls)
		callRoutes.POST("/:id/ack", h.AcknowledgeWaiterCall)
	}
}

// SetupProductRoutes sets up the menu routes. Everyone reads, managers write.
func SetupProductRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.ProductHandler) {
	productRoutes := authenticatedGroup.Group("/products")
	{
		productRoutes.GET("", middleware.RoleAuthMiddleware(everyone...), h.GetProducts)
		productRoutes.GET("/:id", middleware.RoleAuthMiddleware(everyone...), h.GetProductByID)

		writes := productRoutes.Group("")
		writes.Use(middleware.RoleAuthMiddleware(managerOnly...))
		writes.POST("", h.CreateProduct)
		writes.PUT("/:id", h.UpdateProduct)
		writes.DELETE("/:id", h.DeleteProduct)
	}
}

// SetupSettingsRoutes sets up the establishment settings routes.
func SetupSettingsRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.SettingHandler) {
	settingsRoutes := authenticatedGroup.Group("/establishment")
	{
		settingsRoutes.GET("", middleware.RoleAuthMiddleware(everyone...), h.GetEstablishment)
		settingsRoutes.PUT("", middleware.RoleAuthMiddleware(managerOnly...), h.UpdateEstablishment)
	}
}

// SetupReportRoutes sets up the sales ledger routes.
func SetupReportRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.ReportHandler) {
	reportRoutes := authenticatedGroup.Group("/sales")
	reportRoutes.Use(middleware.RoleAuthMiddleware(managerOnly...))
	{
		reportRoutes.GET("", h.GetSettlements)
		reportRoutes.GET("/summary", h.GetSalesSummary)
	}
}

// SetupRealtimeRoutes sets up the floor snapshot and change stream.
func SetupRealtimeRoutes(authenticatedGroup *gin.RouterGroup, h *handlers.RealtimeHandler) {
	authenticatedGroup.GET("/floor", middleware.RoleAuthMiddleware(everyone...), h.GetFloor)
	authenticatedGroup.GET("/ws", middleware.RoleAuthMiddleware(everyone...), h.StreamChanges)
}
