package main

import (
	"log"

	_ "solicitudes/api/swagger" // swagger docs
	"solicitudes/internal/config"
	"solicitudes/internal/database"
	"solicitudes/internal/handler"
	"solicitudes/internal/middleware"
	"solicitudes/internal/queue"
	"solicitudes/internal/repository"
	"solicitudes/internal/service"
	"solicitudes/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Internal Request Management API
// @version         1.0
// @description     Employee requests with role-based approval and email notifications.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Development)
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewConnection(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("connected to postgresql")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	emailJobRepo := repository.NewEmailJobRepository(db)
	txManager := repository.NewTransactionManager(db)

	emailQueue := queue.New(emailJobRepo, cfg.Worker.MaxAttempts, logger)

	userService := service.NewUserService(userRepo, cfg.JWTSecret)
	requestService := service.NewRequestService(requestRepo, notificationRepo, txManager, emailQueue, wsHub, logger)
	notificationService := service.NewNotificationService(notificationRepo, requestRepo, emailQueue, logger)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService)
	requestHandler := handler.NewRequestHandler(requestService)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	auth := middleware.RequireAuth(userRepo, cfg.JWTSecret)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, userRepo, c, cfg.JWTSecret)
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""), auth)
	userHandler.RegisterRoutes(router.Group(""), auth)
	requestHandler.RegisterRoutes(router.Group(""), auth)
	notificationHandler.RegisterRoutes(router.Group(""), auth)

	logger.Info("server listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
