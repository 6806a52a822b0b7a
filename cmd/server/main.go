package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"myshop-backend/internal/chat"
	"myshop-backend/internal/config"
	"myshop-backend/internal/database"
	"myshop-backend/internal/handlers"
	"myshop-backend/internal/middleware"
	"myshop-backend/internal/repository"
	"myshop-backend/internal/router"
	"myshop-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting MyShop Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	productRepo := repository.NewProductRepo(pool)
	orderRepo := repository.NewOrderRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, redisClient, jwtAuth)
	ollamaService := services.NewOllamaService(services.OllamaConfig{
		Host:         cfg.OllamaHost,
		Model:        cfg.OllamaModel,
		ProbeTimeout: cfg.OllamaProbeTimeout,
		ChatTimeout:  cfg.OllamaChatTimeout,
	})
	chatStore := chat.NewStore(redisClient)
	chatSessions := chat.NewManager(chatStore, ollamaService)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	aiHandler := handlers.NewAIHandler(ollamaService, chatSessions)
	productHandler := handlers.NewProductHandler(productRepo)
	orderHandler := handlers.NewOrderHandler(orderRepo)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		aiHandler,
		productHandler,
		orderHandler,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ MyShop Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  Ollama configured to: %s", cfg.OllamaHost)
	log.Printf("  Using model: %s", cfg.OllamaModel)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
