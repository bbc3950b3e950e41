package main

import (
	"log"
	"os"
	"strings"
	"time"

	"stall_pos_backend/internal/database"
	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/router"
	"stall_pos_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	utils.InitLogger()

	// Database configuration
	dbHost := utils.Getenv("DB_HOST", "localhost")
	dbPort := utils.Getenv("DB_PORT", "5432")
	dbUser := utils.Getenv("DB_USER", "stall_pos_user")
	dbPassword := utils.Getenv("DB_PASSWORD", "stall_pos_password")
	dbName := utils.Getenv("DB_NAME", "stall_pos_db")
	dbSSLMode := utils.Getenv("DB_SSLMODE", "disable")
	dbSchemaPath := utils.Getenv("DB_SCHEMA_PATH", "")

	db, err := database.InitDB(dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode, dbSchemaPath)
	if err != nil {
		utils.LogError(err, "Failed to initialize database")
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	utils.LogInfo("Database initialized")

	// Payment gateway configuration. The callback bases point back at this
	// service's public payment endpoints.
	publicBaseURL := utils.Getenv("PUBLIC_BASE_URL", "http://localhost:8080")
	gwCfg := gateway.Config{
		BaseURL:        utils.Getenv("GATEWAY_BASE_URL", "https://sandbox-api-pay.line.me"),
		ChannelID:      utils.Getenv("GATEWAY_CHANNEL_ID", ""),
		ChannelSecret:  utils.Getenv("GATEWAY_CHANNEL_SECRET", ""),
		ConfirmURLBase: publicBaseURL + "/api/v1/public/payments",
		CancelURLBase:  publicBaseURL + "/api/v1/public/payments",
		Currency:       utils.Getenv("GATEWAY_CURRENCY", "TWD"),
		Timeout:        utils.GetenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
	}

	jwtSecret := utils.Getenv("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	jwtManager := utils.NewJWTManager(jwtSecret, utils.GetenvDuration("JWT_TTL", 12*time.Hour))

	engine := gin.Default()
	engine.Use(utils.GinLogger())

	// CORS configuration
	var allowedOrigins []string
	if env := os.Getenv("CORS_ALLOWED_ORIGINS"); env != "" {
		allowedOrigins = strings.Split(env, ",")
	} else {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	router.Setup(engine, db, gwCfg, jwtManager)

	port := utils.Getenv("PORT", "8080")
	utils.LogInfo("Server starting", map[string]interface{}{"port": port})
	if err := engine.Run(":" + port); err != nil {
		utils.LogError(err, "Failed to start server")
		log.Fatalf("Failed to start server: %v", err)
	}
}
