package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bar_backoffice/internal/config"
	"bar_backoffice/internal/database"
	"bar_backoffice/internal/events"
	"bar_backoffice/internal/realtime"
	"bar_backoffice/internal/repositories"
	"bar_backoffice/internal/router"
	"bar_backoffice/internal/services"
	"bar_backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(utils.Getenv("ENV_FILE", ".env"))
	if err != nil {
		utils.InitLogger("console", "info")
		utils.LogError(err, "Invalid configuration")
		os.Exit(1)
	}
	utils.InitLogger(cfg.LogFormat, cfg.LogLevel)
	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.InitDB(ctx, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.ApplySchema(ctx, db, cfg.DBSchemaPath); err != nil {
		return err
	}

	// Initialize Repositories
	tx := repositories.NewTransactor(db)
	authRepo := repositories.NewAuthRepository(db)
	tableRepo := repositories.NewTableRepository(db)
	lineRepo := repositories.NewOrderLineRepository(db)
	productRepo := repositories.NewProductRepository(db)
	establishmentRepo := repositories.NewEstablishmentRepository(db)
	settlementRepo := repositories.NewSettlementRepository(db)

	// Optional infrastructure
	var productCache services.ProductCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			utils.LogWarn("Redis unreachable, product cache disabled", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		} else {
			productCache = rdb
			utils.LogInfo("Product cache enabled", map[string]interface{}{"addr": cfg.RedisAddr, "ttl": cfg.ProductTTL.String()})
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		publisher = rp
		utils.LogInfo("Publishing ledger events", map[string]interface{}{"exchange": cfg.RabbitMQExchange})
	}
	defer publisher.Close()

	hub := realtime.NewHub()
	go func() {
		if err := realtime.ListenPostgres(ctx, cfg.DatabaseDSN(), hub); err != nil && !errors.Is(err, context.Canceled) {
			utils.LogError(err, "Postgres change listener stopped")
		}
	}()

	// Initialize Services
	defaults := services.EstablishmentSettings{
		ServiceFeeRate:   cfg.DefaultServiceFeeRate,
		KitchenLateAfter: cfg.DefaultKitchenLateAfter,
	}
	establishmentService := services.NewEstablishmentService(establishmentRepo, tx, defaults, cfg.QueryTimeout)
	productService := services.NewProductService(productRepo, tx, productCache, cfg.ProductTTL, cfg.QueryTimeout)
	ledgerService := services.NewLedgerService(tx, tableRepo, lineRepo, settlementRepo,
		productService, establishmentService, publisher, cfg.QueryTimeout)
	salesService := services.NewSalesService(settlementRepo, cfg.QueryTimeout)
	authService := services.NewAuthService(authRepo, tx, cfg.JWTSecret, cfg.JWTTTL, cfg.QueryTimeout)

	floors := services.NewFloorRegistry(ctx, ledgerService, hub)
	defer floors.Close()

	if cfg.SeedManagerUsername != "" {
		if err := authService.EnsureManager(ctx, cfg.SeedEstablishmentID, cfg.SeedManagerUsername, cfg.SeedManagerPassword); err != nil {
			return err
		}
	}

	engine := router.New(router.Services{
		Auth:           authService,
		Ledger:         ledgerService,
		Products:       productService,
		Establishments: establishmentService,
		Sales:          salesService,
		Floors:         floors,
		Hub:            hub,
	}, []byte(cfg.JWTSecret), cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	utils.LogInfo("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
