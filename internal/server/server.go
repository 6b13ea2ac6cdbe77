// Package server wires the HTTP and WebSocket surface of the
// collaboration service.
package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"collabboard/internal/auth"
	"collabboard/internal/cache"
	"collabboard/internal/config"
	"collabboard/internal/handler"
	"collabboard/internal/presence"
	"collabboard/internal/storage"
)

// Server is the Fiber application plus its handlers.
type Server struct {
	app           *fiber.App
	cfg           *config.Config
	db            *gorm.DB
	hub           *handler.Hub
	collabWS      *handler.CollabWSHandler
	authHandler   *handler.AuthHandler
	roomHandler   *handler.RoomHandler
	fileHandler   *handler.FileHandler
	healthHandler *handler.HealthHandler
	jwtManager    *auth.JWTManager
	localStore    *storage.LocalStore // set when files live on local disk
}

// New creates a server. mirror and history are optional and may be nil
// when Redis is not configured.
func New(cfg *config.Config, db *gorm.DB, store storage.Store, mirror *presence.Mirror, history *cache.RedisClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:        "CollabBoard",
		ServerHeader:   "Fiber",
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		Prefork:        false, // incompatible with the in-process hub
		ReadBufferSize: 16384,
		BodyLimit:      50 * 1024 * 1024,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	googleAuth := auth.NewGoogleAuthenticator(cfg.Auth.GoogleClientID)

	hub := handler.NewHub(db, mirror, history)
	hub.SetWriteTimeout(cfg.WebSocket.WriteTimeout)

	s := &Server{
		app:           app,
		cfg:           cfg,
		db:            db,
		hub:           hub,
		collabWS:      handler.NewCollabWSHandler(hub),
		authHandler:   handler.NewAuthHandler(db, jwtManager, googleAuth, cfg.Auth),
		roomHandler:   handler.NewRoomHandler(db, hub, mirror, history),
		fileHandler:   handler.NewFileHandler(db, store, cfg.S3.PresignExpiry, cfg.S3.PreviewExpiry),
		healthHandler: handler.NewHealthHandler(db),
		jwtManager:    jwtManager,
	}
	if local, ok := store.(*storage.LocalStore); ok {
		s.localStore = local
	}
	return s
}

// SetupMiddleware installs panic recovery, request logging and CORS.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Local signed URLs point at /uploads; S3 serves its own.
	if s.localStore != nil {
		s.app.Static("/uploads", s.localStore.Dir())
	}
}

// SetupRoutes registers every endpoint.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)

	// Brute force guard on the credential endpoints.
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	api := s.app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/google", authLimiter, s.authHandler.GoogleLogin)
	authGroup.Post("/refresh", authLimiter, s.authHandler.RefreshToken)
	authGroup.Post("/logout", auth.AuthMiddleware(s.jwtManager), s.authHandler.Logout)
	authGroup.Get("/me", auth.AuthMiddleware(s.jwtManager), s.authHandler.GetMe)

	roomGroup := api.Group("/rooms", auth.OptionalAuthMiddleware(s.jwtManager))
	roomGroup.Get("", s.roomHandler.ListRooms)
	roomGroup.Post("", s.roomHandler.CreateRoom)
	roomGroup.Get("/:roomId", s.roomHandler.GetRoom)
	roomGroup.Delete("/:roomId", s.roomHandler.DeleteRoom)
	roomGroup.Get("/:roomId/messages", s.roomHandler.GetMessages)
	roomGroup.Get("/:roomId/presence", s.roomHandler.GetPresence)

	fileGroup := api.Group("/files", auth.OptionalAuthMiddleware(s.jwtManager))
	fileGroup.Post("/upload", s.fileHandler.Upload)
	fileGroup.Get("/:fileId/download", s.fileHandler.Download)
	fileGroup.Get("/:fileId/preview", s.fileHandler.Preview)
	fileGroup.Delete("/:fileId", s.fileHandler.Delete)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/:roomId/:userId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		roomID := c.Params("roomId")
		userID := c.Params("userId")
		if roomID == "" || userID == "" {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// Display name comes from a validated token when one is
		// offered, else from the query, else the participant id.
		username := c.Query("username", userID)
		if token := c.Query("token"); token != "" {
			claims, err := s.jwtManager.ValidateAccessToken(token)
			if err != nil {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			if claims.Username != "" {
				username = claims.Username
			}
		}

		c.Locals("roomId", roomID)
		c.Locals("userId", userID)
		c.Locals("username", username)

		return c.Next()
	}, websocket.New(s.collabWS.HandleWebSocket, websocket.Config{
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
	}))
}

// Start runs the server until SIGINT/SIGTERM, then drains connections.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("[Server] Shutting down...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("[Server] Shutdown error: %v", err)
		}
	}()

	log.Printf("[Server] CollabBoard listening on %s", s.cfg.Server.Port)
	log.Printf("[Server] Collab endpoint: ws://localhost%s/ws/:roomId/:userId", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the server, draining for up to 30 seconds.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
