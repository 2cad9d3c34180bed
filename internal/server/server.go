package server

import (
	"log/slog"
	"slices"
	"strings"

	"backend-journitag/internal/access"
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/auth"
	"backend-journitag/internal/config"
	"backend-journitag/internal/db"
	"backend-journitag/internal/friend"
	"backend-journitag/internal/geocode"
	applog "backend-journitag/internal/logger"
	"backend-journitag/internal/location"
	"backend-journitag/internal/photo"
	"backend-journitag/internal/storage"
	"backend-journitag/internal/stream"
	"backend-journitag/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.Querier
	Redis  *redis.Client
	Stream *stream.Hub
	Files  *storage.Local
	Log    *slog.Logger
}

func NewServer(cfg config.Config, q db.Querier, redisClient *redis.Client, log *slog.Logger) (*Server, error) {
	log = applog.OrDefault(log)

	files, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.FiberHandler,
		BodyLimit:    cfg.MaxUploadBytes,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(origins, ","),
			AllowCredentials: !slices.Contains(origins, "*"),
		}))
	}

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     q,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Files:  files,
		Log:    log,
	}

	registerRoutes(s)
	return s, nil
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	evaluator := access.NewEvaluator(s.DB)
	geocoder := geocode.NewCached(
		geocode.NewNominatim(s.Cfg.GeocoderURL, s.Cfg.GeocoderUserAgent, s.Cfg.GeocoderTimeout, geocode.WithLogger(s.Log)),
		s.Redis, s.Cfg.GeocodeCacheTTL, s.Log,
	)

	photos := photo.NewService(s.DB, photo.Deps{
		Access: evaluator,
		Files:  s.Files,
		Events: s.Stream,
		Logger: s.Log,
	})
	locations := location.NewService(s.DB, location.Deps{
		Access:   evaluator,
		Geocoder: geocoder,
		Photos:   photos,
		Events:   s.Stream,
		Logger:   s.Log,
	})
	friends := friend.NewService(s.DB, s.Log)
	trips := trip.NewService(s.DB, trip.Deps{
		Access:    evaluator,
		Locations: locations,
		Photos:    photos,
		Friends:   friends,
		Events:    s.Stream,
		Logger:    s.Log,
	})

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB, s.Log), jwtMiddleware)
	trip.RegisterRoutes(s.App.Group("/trips"), trips, jwtMiddleware)
	location.RegisterRoutes(s.App.Group("/locations"), locations, jwtMiddleware)
	photo.RegisterRoutes(s.App.Group("/photos"), photos, jwtMiddleware)
	friend.RegisterRoutes(s.App.Group("/friends"), friends, jwtMiddleware)
	geocode.RegisterRoutes(s.App.Group("/geocode"), geocoder, jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/uploads"), s.Files)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
