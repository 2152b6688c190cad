package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/learnpay/backend/docs"
	"github.com/learnpay/backend/internal/config"
	"github.com/learnpay/backend/internal/database"
	"github.com/learnpay/backend/internal/gateway"
	"github.com/learnpay/backend/internal/handlers"
	mW "github.com/learnpay/backend/internal/middleware"
	"github.com/learnpay/backend/internal/notify"
	"github.com/learnpay/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title LearnPay Backend API
// @version 1.0
// @description API for tutor wallet ledger and commission settlement
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.pool_size", "REDIS_POOL_SIZE")

	viper.BindEnv("gateway.host", "PAYMENT_GATEWAY_HOST")
	viper.BindEnv("gateway.secret_key", "PAYMENT_GATEWAY_SECRET_KEY")
	viper.BindEnv("gateway.timeout_seconds", "PAYMENT_GATEWAY_TIMEOUT_SECONDS")
	viper.BindEnv("notification.webhook_url", "NOTIFICATION_WEBHOOK_URL")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("gateway.host", "https://api.paystack.co")
	viper.SetDefault("gateway.timeout_seconds", 15)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "LearnPay Backend API"
	docs.SwaggerInfo.Description = "API for tutor wallet ledger and commission settlement"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	gatewayClient := gateway.NewClient(
		viper.GetString("gateway.host"),
		viper.GetString("gateway.secret_key"),
		viper.GetInt("gateway.timeout_seconds"),
	)
	notifier := notify.NewWebhookNotifier(viper.GetString("notification.webhook_url"))

	walletService := services.NewWalletService(db)
	fundingService := services.NewFundingService(db, redisClient, walletService, gatewayClient, notifier)
	payoutService := services.NewPayoutMessageService(db)
	transferService := services.NewTransferService(db, walletService, payoutService, notifier)
	beneficiaryService := services.NewBeneficiaryService(db)
	authService := services.NewAuthService(db, redisClient)
	qrService := services.NewQRService(db, redisClient)
	qrHandler := handlers.NewQRHandler(qrService)

	renewalService := services.NewRenewalService(db, redisClient, walletService, notifier, config.LoadRenewalConfig())
	renewalCtx, stopRenewal := context.WithCancel(context.Background())
	defer stopRenewal()
	go renewalService.Start(renewalCtx)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			// Wallet endpoints
			r.Post("/wallet/fund", fundingService.FundWallet)
			r.Get("/wallet/balance", walletService.BalanceEnquiry)
			r.Get("/wallet/ledger", walletService.LedgerHistory)
			r.Post("/wallet/funding-qr", qrHandler.GenerateFundingQR)
			r.Post("/wallet/funding-qr/resolve", qrHandler.ResolveFundingQR)

			// Beneficiaries
			r.Post("/beneficiaries", beneficiaryService.SubmitBeneficiary)

			// Admin endpoints. Sales are posted by the checkout system
			// with an admin credential, never by tutors themselves.
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Post("/sales", walletService.RecordSale)
				r.Put("/admin/beneficiaries/{beneficiaryId}/verify", beneficiaryService.VerifyBeneficiary)
				r.Post("/admin/transfers", transferService.InitiateTransfer)
				r.Get("/admin/transfers/{transferId}", transferService.GetTransfer)
				r.Put("/admin/transfers/{transferId}/complete", transferService.CompleteTransfer)
				r.Put("/admin/transfers/{transferId}/cancel", transferService.CancelTransfer)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopRenewal()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
