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

	"league-backend/internal/app"
	"league-backend/internal/config"
	"league-backend/internal/db"
	"league-backend/internal/router"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional, real deployments use the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("📋 Loaded environment from .env")
	}

	if err := config.LoadConfig(os.Getenv("CONFIG_PATH")); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db.InitDB()

	container, err := app.NewServiceContainer(db.DB)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer container.Close()

	if err := container.Monitoring.Start(); err != nil {
		log.Fatalf("Failed to start monitoring worker: %v", err)
	}

	r := router.SetupRouter(
		container.AuthHandler,
		container.RegistryHandler,
		container.LeagueHandler,
		container.OracleHandler,
	)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("🚀 league-backend listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Forced shutdown: %v", err)
	}
	log.Println("✅ Server stopped")
}
