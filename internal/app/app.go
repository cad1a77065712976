package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nekotv/core/internal/config"
	"github.com/nekotv/core/internal/database"
	"github.com/nekotv/core/internal/middleware"
	pkgcron "github.com/nekotv/core/internal/pkg/cron"
	jwtpkg "github.com/nekotv/core/internal/pkg/jwt"
	pkgredis "github.com/nekotv/core/internal/pkg/redis"
	sessionpkg "github.com/nekotv/core/internal/pkg/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies. Everything is explicitly
// constructed here and passed down; no package-level singletons.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client
	sessions *sessionpkg.Manager
	codec    *jwtpkg.Codec
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → session core → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	store, err := buildTokenStore(cfg, db, rc)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.Session.TTLDays) * 24 * time.Hour
	sessions := sessionpkg.NewManager(store, ttl, logger)

	if cfg.JWTSecret == "" {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
	codec := jwtpkg.NewCodec(cfg.JWTSecret)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())

	sched := pkgcron.New()
	registerCronJobs(sched, sessions, logger)
	go sched.Start(ctx)

	app := &App{
		cfg: cfg, router: router, db: db, rc: rc,
		sessions: sessions, codec: codec,
		logger: logger, cancel: cancel, sched: sched,
	}
	app.registerRoutes()

	return app, nil
}

func buildTokenStore(cfg *config.AppConfig, db *gorm.DB, rc *pkgredis.Client) (sessionpkg.Store, error) {
	switch cfg.Session.Store {
	case config.SessionStoreMySQL:
		return sessionpkg.NewGormStore(db), nil
	case config.SessionStoreRedis:
		return sessionpkg.NewRedisStore(rc.Raw()), nil
	case config.SessionStoreMemory:
		return sessionpkg.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines and connections.
func (a *App) Shutdown() {
	a.cancel()
	_ = a.rc.Close()
}
