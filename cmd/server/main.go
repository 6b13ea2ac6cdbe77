package main

import (
	"context"
	"log"

	"collabboard/internal/cache"
	"collabboard/internal/config"
	"collabboard/internal/database"
	"collabboard/internal/presence"
	"collabboard/internal/server"
	"collabboard/internal/storage"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("[Main] Database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		log.Fatalf("[Main] Database ping failed: %v", err)
	}
	log.Printf("[Main] Database connected (%s)", cfg.Database.Driver)

	store := buildStore(cfg)

	var mirror *presence.Mirror
	var history *cache.RedisClient
	if cfg.Redis.Addr != "" {
		mirror, err = presence.NewMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("[Main] Presence mirror disabled: %v", err)
			mirror = nil
		}
		history, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("[Main] Chat history cache disabled: %v", err)
			history = nil
		}
	} else {
		log.Println("[Main] Redis not configured, presence mirror and chat cache disabled")
	}
	if mirror != nil {
		defer mirror.Close()
	}
	if history != nil {
		defer history.Close()
	}

	srv := server.New(cfg, db, store, mirror, history)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("[Main] Server failed to start: %v", err)
	}
}

// buildStore picks S3 when a bucket is configured and falls back to the
// local upload directory.
func buildStore(cfg *config.Config) storage.Store {
	if cfg.S3.BucketName != "" {
		store, err := storage.NewS3Store(context.Background(), cfg.S3)
		if err == nil {
			log.Printf("[Main] S3 storage ready (bucket: %s)", cfg.S3.BucketName)
			return store
		}
		log.Printf("[Main] S3 init failed, using local storage: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.S3.LocalDir, "http://localhost"+cfg.Server.Port+"/uploads")
	if err != nil {
		log.Fatalf("[Main] Local storage init failed: %v", err)
	}
	log.Printf("[Main] Local storage ready (%s)", cfg.S3.LocalDir)
	return store
}
