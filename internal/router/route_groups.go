package router

import (
	"stall_pos_backend/internal/handlers"
	"stall_pos_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPublicRoutes sets up the unauthenticated customer-facing routes.
func SetupPublicRoutes(
	apiGroup *gin.RouterGroup,
	catalogHandler *handlers.CatalogHandler,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
) {
	publicRoutes := apiGroup.Group("/public")
	{
		publicRoutes.GET("/stores/:store/menu", catalogHandler.GetMenu)
		publicRoutes.POST("/orders", orderHandler.CreateOrder)
		publicRoutes.GET("/orders/latest", orderHandler.GetLatestOrders)
		publicRoutes.GET("/orders/:id", orderHandler.GetOrderByID)
		publicRoutes.PATCH("/orders/:id/status", orderHandler.CustomerUpdateOrderStatus)

		// Gateway redirect targets. The provider sends the customer's
		// browser here after the payment screen.
		publicRoutes.GET("/payments/:id/confirm", paymentHandler.ConfirmCallback)
		publicRoutes.GET("/payments/:id/cancel", paymentHandler.CancelCallback)
	}
}

// SetupPublicAuthRoutes sets up the staff login route.
func SetupPublicAuthRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}
}

// SetupStaffAuthRoutes sets up the account-management routes.
func SetupStaffAuthRoutes(authenticatedGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authRoutes := authenticatedGroup.Group("/auth")
	authRoutes.Use(middleware.RoleAuthMiddleware("Admin"))
	{
		authRoutes.POST("/register", authHandler.Register)
	}
}

// SetupOrderRoutes sets up the staff order routes.
func SetupOrderRoutes(
	authenticatedGroup *gin.RouterGroup,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
) {
	orderRoutes := authenticatedGroup.Group("/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrderByID)
		orderRoutes.PATCH("/:id/status", orderHandler.UpdateOrderStatus)
		orderRoutes.PUT("/:id/items", orderHandler.UpdateOrderItems)
		orderRoutes.POST("/:id/refund", paymentHandler.RefundOrder)
	}
}

// SetupStoreRoutes sets up the store administration routes.
func SetupStoreRoutes(authenticatedGroup *gin.RouterGroup, storeHandler *handlers.StoreHandler) {
	storeRoutes := authenticatedGroup.Group("/stores")
	storeRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		storeRoutes.GET("", storeHandler.GetStores)
	}

	adminStoreRoutes := authenticatedGroup.Group("/stores")
	adminStoreRoutes.Use(middleware.RoleAuthMiddleware("Admin"))
	{
		adminStoreRoutes.POST("", storeHandler.CreateStore)
		// Param is named :store to match the sibling store-scoped routes,
		// Gin rejects differing wildcard names at the same position.
		adminStoreRoutes.PUT("/:store", storeHandler.UpdateStore)
	}
}

// SetupCatalogRoutes sets up the category and product administration routes.
func SetupCatalogRoutes(authenticatedGroup *gin.RouterGroup, catalogHandler *handlers.CatalogHandler) {
	categoryRoutes := authenticatedGroup.Group("/categories")
	categoryRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		categoryRoutes.POST("", catalogHandler.CreateCategory)
		categoryRoutes.PUT("/:id", catalogHandler.UpdateCategory)
		categoryRoutes.DELETE("/:id", catalogHandler.DeleteCategory)
	}

	productRoutes := authenticatedGroup.Group("/products")
	productRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		productRoutes.POST("", catalogHandler.CreateProduct)
		productRoutes.GET("/:id", catalogHandler.GetProductByID)
		productRoutes.PUT("/:id", catalogHandler.UpdateProduct)
	}

	storeScopedRoutes := authenticatedGroup.Group("/stores/:store")
	storeScopedRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		storeScopedRoutes.GET("/categories", catalogHandler.GetCategories)
		storeScopedRoutes.GET("/products", catalogHandler.GetProducts)
	}
}

// SetupReportRoutes sets up the reporting and end-of-day routes.
func SetupReportRoutes(authenticatedGroup *gin.RouterGroup, reportHandler *handlers.ReportHandler) {
	reportRoutes := authenticatedGroup.Group("/stores/:store")
	reportRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		reportRoutes.GET("/dashboard", reportHandler.GetDashboardStats)
		reportRoutes.POST("/reset-daily", reportHandler.ResetDaily)
	}
}
