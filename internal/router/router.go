package router

import (
	"database/sql"

	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/handlers"
	"stall_pos_backend/internal/middleware"
	"stall_pos_backend/internal/repositories"
	"stall_pos_backend/internal/services"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, db *sql.DB, gwCfg gateway.Config, jwt *utils.JWTManager) {
	// Repositories
	storeRepo := repositories.NewStoreRepository(db)
	catalogRepo := repositories.NewCatalogRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	staffRepo := repositories.NewStaffRepository(db)
	txRunner := repositories.NewTxRunner(db)

	gw := gateway.NewClient(gwCfg)

	// Services
	authService := services.NewAuthService(staffRepo, txRunner, jwt)
	catalogService := services.NewCatalogService(storeRepo, catalogRepo, txRunner)
	paymentService := services.NewPaymentService(orderRepo, catalogRepo, txRunner, gw)
	orderService := services.NewOrderService(storeRepo, catalogRepo, orderRepo, txRunner, gw, paymentService)
	reportService := services.NewReportService(storeRepo, catalogRepo, orderRepo, txRunner)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	storeHandler := handlers.NewStoreHandler(catalogService)
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	reportHandler := handlers.NewReportHandler(reportService)

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := engine.Group("/api/v1")

	// Public routes: the ordering page and the gateway redirects have no
	// authentication, customers never log in.
	SetupPublicRoutes(apiV1, catalogHandler, orderHandler, paymentHandler)
	SetupPublicAuthRoutes(apiV1, authHandler)

	// Staff routes
	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(jwt))
	{
		SetupOrderRoutes(authenticated, orderHandler, paymentHandler)
		SetupStoreRoutes(authenticated, storeHandler)
		SetupCatalogRoutes(authenticated, catalogHandler)
		SetupReportRoutes(authenticated, reportHandler)
		SetupStaffAuthRoutes(authenticated, authHandler)
	}
}
