package router

import (
	"net/http"
	"time"

	"bar_backoffice/internal/handlers"
	"bar_backoffice/internal/middleware"
	"bar_backoffice/internal/realtime"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth           services.AuthService
	Ledger         services.LedgerService
	Products       services.ProductService
	Establishments services.EstablishmentService
	Sales          services.SalesService
	Floors         *services.FloorRegistry
	Hub            *realtime.Hub
}

// New builds the engine with logging and CORS, then mounts the API.
func New(svc Services, jwtSecret []byte, allowedOrigins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.GinLogger())

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour
	engine.Use(cors.New(config))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	Setup(engine, svc, jwtSecret)
	return engine
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, svc Services, jwtSecret []byte) {
	authHandler := handlers.NewAuthHandler(svc.Auth)
	ledgerHandler := handlers.NewLedgerHandler(svc.Ledger)
	productHandler := handlers.NewProductHandler(svc.Products)
	settingHandler := handlers.NewSettingHandler(svc.Establishments)
	reportHandler := handlers.NewReportHandler(svc.Sales)
	realtimeHandler := handlers.NewRealtimeHandler(svc.Floors, svc.Hub)

	apiV1 := engine.Group("/api/v1")

	SetupPublicAuthRoutes(apiV1.Group("/auth"), authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(jwtSecret))
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupTableRoutes(authenticated, ledgerHandler)
		SetupOrderLineRoutes(authenticated, ledgerHandler)
		SetupKitchenRoutes(authenticated, ledgerHandler)
		SetupWaiterCallRoutes(authenticated, ledgerHandler)
		SetupProductRoutes(authenticated, productHandler)
		SetupSettingsRoutes(authenticated, settingHandler)
		SetupReportRoutes(authenticated, reportHandler)
		SetupRealtimeRoutes(authenticated, realtimeHandler)
	}
}

func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.LoginUser)
}

func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.GET("/me", authHandler.GetCurrentUser)
	group.POST("/users", middleware.RoleAuthMiddleware(managerOnly...), authHandler.RegisterUser)
}
