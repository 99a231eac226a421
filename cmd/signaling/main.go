package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/peerline/signaling/config"
	"github.com/peerline/signaling/internal/handlers"
	"github.com/peerline/signaling/internal/presence"
	"github.com/peerline/signaling/internal/signaling"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Optional Redis presence mirror
	var mirror signaling.Presence
	if cfg.Redis.Addr != "" {
		m, err := presence.Connect(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer m.Close()
		mirror = m
		log.Println("Redis connection established")
	}

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Signaling endpoints: /health, /status and the WebSocket at /ws
	server := handlers.NewServer(mirror, cfg.Strict)
	server.RegisterRoutes(router)

	// Static client assets, if a directory is configured and present
	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.StaticDir))))
		}
	}

	// Start server
	log.Printf("Starting call signaling server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
