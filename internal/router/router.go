package router

import (
	"log"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/fruitsense/backend/internal/fanout"
	"github.com/fruitsense/backend/internal/handlers"
	"github.com/fruitsense/backend/internal/middleware"
	"github.com/fruitsense/backend/internal/models"
	"github.com/fruitsense/backend/internal/push"
	"github.com/fruitsense/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, firebaseAuthClient *auth.Client, pushGatewayURL string) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.PushToken{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	tokenRepo := repositories.NewPostgresTokenRepository(pgdb)
	notificationRepo := repositories.NewMongoNotificationRepository(mgClient.Database("fruitsense"))

	// --- Fan-out pipeline ---
	sender := push.NewGatewaySender(pushGatewayURL, http.DefaultClient)
	dispatcher := fanout.NewDispatcher(notificationRepo, userRepo, tokenRepo, sender)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClient)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, tokenRepo, userRepo, dispatcher)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")
}
