package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"dpp-certification/internal/cache"
	"dpp-certification/internal/config"
	"dpp-certification/internal/events"
	"dpp-certification/internal/logger"
	"dpp-certification/internal/metrics"
	custommiddleware "dpp-certification/internal/middleware"
	"dpp-certification/internal/repository"
	"dpp-certification/internal/resilience"
	"dpp-certification/internal/service"
	"dpp-certification/internal/storage"
	"dpp-certification/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
	nats   *events.NATSPublisher
}

func NewServer(cfg *config.Config, log *zap.Logger, db *sql.DB) (*Server, error) {
	s := &Server{config: cfg, logger: log, db: db}

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.Resilience.RetryMaxAttempts,
		BreakerEnabled:   cfg.Resilience.BreakerEnabled,
	}, log)

	store, files, err := newDocumentStore(cfg.Storage, exec)
	if err != nil {
		return nil, err
	}

	s.redis = connectRedis(cfg.Redis, log)

	var publisher events.Publisher = events.NewNoop()
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, events.NATSOptions{
			Executor: exec,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		s.nats = nc
		publisher = nc
	} else {
		log.Info("NATS_URL not set, lifecycle events are not published")
	}

	var typeCache cache.ProductTypeCache
	if cfg.Cache.Backend == "redis" && s.redis != nil {
		typeCache = cache.NewRedisCache(s.redis, cfg.Cache.TTL)
	} else {
		typeCache = cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	}

	m := metrics.New(logger.ServiceName)

	// Repositories
	dbx := sqlx.NewDb(db, "pgx")
	productRepo := repository.NewProductRepository(dbx)
	documentRepo := repository.NewDocumentRepository(dbx)
	companyRepo := repository.NewCompanyRepository(dbx)
	productTypeRepo := repository.NewProductTypeRepository(dbx)
	assignmentRepo := repository.NewAssignmentRepository(dbx)

	// Services
	notifier := service.NewNotifier(publisher, m, log)
	catalog := service.NewRequirementCatalog(productTypeRepo, typeCache, log)
	productService := service.NewProductService(productRepo, documentRepo, companyRepo, catalog, notifier, log)
	documentService := service.NewDocumentService(
		documentRepo,
		productRepo,
		store,
		storage.UploadOptions{
			MaxSize:           cfg.Upload.MaxBytes,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
		},
		productService,
		notifier,
		log,
	)
	assignmentService := service.NewAssignmentService(assignmentRepo, productRepo, companyRepo, notifier, log)
	companyService := service.NewCompanyService(companyRepo, log)

	// Handlers
	productHandler := transport.NewProductHandler(productService, log)
	documentHandler := transport.NewDocumentHandler(documentService, cfg.Upload.MaxBytes, log)
	assignmentHandler := transport.NewAssignmentHandler(assignmentService, log)
	companyHandler := transport.NewCompanyHandler(companyService, log)
	uploads := custommiddleware.NewUploadThrottle(cfg.Upload.RatePerMinute, cfg.Upload.Burst, log)

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(log))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(log))
	router.Use(m.Middleware)

	router.Get("/health", s.health)
	router.Handle("/metrics", m.Handler())
	if files != "" {
		router.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(files))))
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.AuthMiddleware(cfg.JWT.Secret, log))
		if s.redis != nil {
			r.Use(custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "ratelimit:api",
			}, log))
		}

		productHandler.RegisterRoutes(r, assignmentHandler.ProductRoutes)
		documentHandler.RegisterRoutes(r, uploads.Middleware)
		assignmentHandler.RegisterRoutes(r)
		companyHandler.RegisterRoutes(r)
	})

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s, nil
}

// newDocumentStore picks the configured backend. The second return value is
// the directory to serve under /files, empty when files live in S3.
func newDocumentStore(cfg config.StorageConfig, exec *resilience.Executor) (storage.DocumentStore, string, error) {
	switch cfg.Backend {
	case "s3":
		s3, err := storage.NewS3Store(cfg)
		if err != nil {
			return nil, "", err
		}
		return storage.NewResilientStore(s3, exec), "", nil
	case "local", "":
		local, err := storage.NewLocalStore(cfg.LocalPath, cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return storage.NewResilientStore(local, exec), local.Root(), nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// connectRedis returns nil when Redis is unreachable; rate limiting is then
// skipped and the product type cache stays in memory.
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, continuing without it", zap.String("addr", cfg.Addr()), zap.Error(err))
		client.Close()
		return nil
	}
	return client
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "up"}
	code := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = "down"
		code = http.StatusServiceUnavailable
	}
	custommiddleware.RespondWithJSON(w, code, status)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.nats != nil {
		s.nats.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
