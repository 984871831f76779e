// Command yroomd serves the room synchronization core over WebSocket:
// health/stats endpoints on Gin, and a per-room sync handshake + broadcast
// loop on the upgrade endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/collabdocs/yroomd/internal/collab"
	"github.com/collabdocs/yroomd/internal/config"
	"github.com/collabdocs/yroomd/internal/logger"
	"github.com/collabdocs/yroomd/internal/metadata"
	"github.com/collabdocs/yroomd/internal/wsconn"
	"github.com/collabdocs/yroomd/internal/ydoc"
	"github.com/collabdocs/yroomd/internal/ystore"
)

// metadataRedisKey stores per-deployment attribution metadata (e.g. which
// yroomd instance last wrote a document) alongside every update, following
// the same raw-bytes get/set convention the pubsub client used for presence.
const metadataRedisKey = "yroomd:metadata"

func main() {
	cfg := config.Load()
	log := logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildStore(cfg, log)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	server := collab.NewServer(ctx, store, cfg.RoomIdleTimeout, log)
	defer server.CloseAll()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"roomCount": server.RoomCount()})
	})
	r.GET("/rooms/:path", func(c *gin.Context) {
		handleUpgrade(c, server, log)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("yroomd starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}

	cancel()
	log.Infof("stopped")
}

func handleUpgrade(c *gin.Context, server *collab.Server, log *logger.Logger) {
	path := c.Param("path")
	conn, err := wsconn.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed for %q: %v", path, err)
		return
	}

	wrapped := wsconn.New(conn)
	defer wrapped.Close()

	if err := server.Serve(c.Request.Context(), wrapped, path, nil); err != nil {
		log.Debugf("room %q connection closed: %v", path, err)
	}
}

func buildStore(cfg *config.Config, log *logger.Logger) (ystore.Store, error) {
	meta, err := buildMetadataFunc(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case config.StoreBackendNone, "":
		return nil, nil
	case config.StoreBackendFile:
		return ystore.NewFileStore(cfg.StoreDir, meta, log), nil
	case config.StoreBackendSQLite:
		return ystore.NewSQLiteStore(cfg.StoreDBPath, cfg.DocumentTTL, squashUpdates, meta, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildMetadataFunc wires internal/metadata.Redis into the store's
// MetadataFunc when a Redis URL is configured; otherwise updates carry no
// metadata.
func buildMetadataFunc(cfg *config.Config) (ystore.MetadataFunc, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return metadata.NewRedis(client, metadataRedisKey).Get, nil
}

// squashUpdates replays a document's update history through a scratch
// document and re-encodes it as a single update, the compaction step
// SQLiteStore runs once a document's TTL has elapsed.
func squashUpdates(updates [][]byte) ([]byte, error) {
	doc := ydoc.NewDocument()
	for _, u := range updates {
		if err := doc.ApplyUpdate("", u); err != nil {
			return nil, err
		}
	}
	return doc.EncodeStateAsUpdate(nil), nil
}
