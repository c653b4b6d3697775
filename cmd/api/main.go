package main

import (
	"context"
	"log"
	"os"
	"time"

	_ "sattva/api/swagger" // swagger docs
	"sattva/internal/database"
	"sattva/internal/gateway"
	"sattva/internal/handler"
	"sattva/internal/middleware"
	"sattva/internal/repository"
	"sattva/internal/service"
	"sattva/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Sattva Marketplace API
// @version         1.0
// @description     Booking API for pilgrim experiences and wellness classes with tax-aware pricing and gateway payments.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := getenv("DB_HOST", "localhost")
	dbPort := getenv("DB_PORT", "5432")
	dbUser := getenv("DB_USER", "postgres")
	dbPassword := getenv("DB_PASSWORD", "postgres")
	dbName := getenv("DB_NAME", "postgres")
	dbSslMode := getenv("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Payment gateway client
	razorpay := gateway.NewClient(
		getenv("RAZORPAY_KEY_ID", "rzp_test_key"),
		getenv("RAZORPAY_KEY_SECRET", "rzp_test_secret"),
	)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	entityRepo := repository.NewEntityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	taxConfigRepo := repository.NewTaxConfigRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userService := service.NewUserService(userRepo, refreshTokenRepo)
	taxService := service.NewTaxService(taxConfigRepo, auditRepo, txManager)
	bookingService := service.NewBookingService(bookingRepo, entityRepo, auditRepo, taxService, razorpay, wsHub, txManager)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	catalogHandler := handler.NewCatalogHandler(entityRepo)
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(bookingService)
	taxHandler := handler.NewTaxHandler(taxService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Sweep payment_pending bookings whose redirect never arrived
	go expireStaleBookings(bookingService)

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

	// WebSocket endpoint for payment status pushes
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	catalogHandler.RegisterRoutes(router.Group(""))
	bookingHandler.RegisterRoutes(router.Group(""))
	paymentHandler.RegisterRoutes(router.Group(""))
	taxHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := getenv("PORT", "8080")

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// expireStaleBookings runs the expiry sweep every 5 minutes. Bookings stuck
// in payment_pending for over an hour move to expired.
func expireStaleBookings(bookings service.BookingService) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		expired, err := bookings.ExpireStale(ctx, time.Hour)
		cancel()
		if err != nil {
			log.Printf("stale booking sweep failed: %v", err)
			continue
		}
		if expired > 0 {
			log.Printf("expired %d stale bookings", expired)
		}
	}
}
