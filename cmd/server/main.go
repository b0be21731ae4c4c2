package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/joycompass/joycompass-backend/internal/config"
	"github.com/joycompass/joycompass-backend/internal/database"
	"github.com/joycompass/joycompass-backend/internal/handlers"
	"github.com/joycompass/joycompass-backend/internal/middleware"
	"github.com/joycompass/joycompass-backend/internal/routes"
	"github.com/joycompass/joycompass-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	// Load configuration
	cfg := config.Load()

	// Connect to PostgreSQL (user accounts)
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis (sessions, rate limiting, stats cache)
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (journal entries)
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	// Ensure MongoDB indexes for the entries collection
	if err := services.EnsureEntryIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB entry indexes: %v", err)
	} else {
		log.Println("✅ MongoDB entry indexes ensured")
	}

	// Initialize the Joy Assistant completion proxy
	if err := handlers.InitAssistantService(cfg); err != nil {
		log.Printf("⚠️  WARNING: %v", err)
		log.Println("   The AI assistant will not be available")
	} else {
		log.Printf("✅ Joy Assistant ready (model: %s)", cfg.OpenAIModel)
	}

	// Initialize Cloudinary for avatar uploads
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		if err := handlers.InitCloudinaryService(cfg); err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Avatar uploads will not be available")
		} else {
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Avatar uploads will not be available")
	}

	// Setup router
	r := chi.NewRouter()

	// Custom CORS: set headers and respond to OPTIONS with 200 so preflight never gets 403
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Redis-based per-IP rate limiting everywhere; production adds security
	// headers and a stricter limit on credential routes
	r.Use(middleware.RateLimitMiddleware)
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity() {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, login rate limiting)")
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Setup routes
	routes.SetupRoutes(r)

	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/auth/signup")
	log.Println("  POST /api/auth/signin")
	log.Println("  POST /api/auth/signout")
	log.Println("  GET  /api/auth/me")
	log.Println("  POST /api/auth/forgot-password")
	log.Println("  POST /api/auth/reset-password")
	log.Println("  PUT  /api/profile")
	log.Println("  POST /api/profile/avatar")
	log.Println("  GET  /api/entries")
	log.Println("  POST /api/entries")
	log.Println("  PUT  /api/entries")
	log.Println("  DELETE /api/entries")
	log.Println("  GET  /api/stats")
	log.Println("  POST /api/chat")
	log.Println("  GET  /ws/chat")

	log.Printf("🚀 Joy Compass backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
