package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/api"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/config"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/events"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/leaderboard"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/privacy"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/security"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/session"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

const cleanupInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	level := monitoring.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(monitoring.NewHandler(os.Stdout, level)))

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	app, err := newApplication(cfg, monitoring.NewLogger(level))
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	app.start(ctx)

	r := app.server.Router()
	if os.Getenv("ENABLE_PROFILING") == "true" {
		slog.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "session_store", app.store.Backend())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	app.close()

	slog.Info("Server exited")
}

// application owns every long-lived dependency of the server.
type application struct {
	cfg     *config.Config
	db      *database.DB
	redis   *ratelimit.RedisClient
	store   session.Store
	board   *leaderboard.Service
	privacy *privacy.PrivacyService
	limiter *ratelimit.RateLimiter
	emitter *events.Emitter
	server  *api.Server

	closers []func()
}

func newApplication(cfg *config.Config, logger *monitoring.Logger) (*application, error) {
	app := &application{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	catalog := survey.Default()
	if cfg.CatalogPath != "" {
		loaded, err := survey.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = loaded
		slog.Info("Loaded survey catalog", "path", cfg.CatalogPath, "version", catalog.Version)
	}
	engine := scoring.NewEngine(catalog)

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.closers = append(app.closers, func() { apperrors.SafeClose(db, "database") })
	repo := database.NewRepository(db)

	app.board = leaderboard.NewService(db)
	app.closers = append(app.closers, app.board.Close)

	metrics := monitoring.NewMetrics()

	// Redis is optional; sessions and rate limits fall back to memory
	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory state", "addr", cfg.RedisAddr, "error", err)
	}
	app.redis = redisClient
	app.closers = append(app.closers, func() { apperrors.SafeClose(redisClient, "redis") })

	if redisClient.IsEnabled() {
		app.store = session.NewRedisStore(redisClient.GetClient(), cfg.SessionTTL)
	} else {
		memStore := session.NewMemoryStore(cfg.SessionTTL)
		app.store = memStore
		app.closers = append(app.closers, memStore.Close)
	}

	if cfg.UsesDevelopmentSecret() {
		slog.Warn("JWT_SECRET is not set, session tokens use the development secret")
	}
	tokens, err := session.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.AMQPURL)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, completion events are dropped", "error", err)
		} else {
			publisher = rabbit
		}
	}
	app.emitter = events.NewEmitter(publisher, metrics)
	app.closers = append(app.closers, func() { apperrors.SafeClose(app.emitter, "event publisher") })

	app.privacy = privacy.NewService(repo, cfg.RetentionDays, app.board)

	limits := ratelimit.DefaultConfig()
	limits.IPLimitPerMin = cfg.RateLimitPerMin
	if cfg.SessionLimitPerMin > 0 {
		limits.SessionLimitPerMin = cfg.SessionLimitPerMin
	}
	if cfg.CompleteLimitPerH > 0 {
		limits.CompleteLimitPerH = cfg.CompleteLimitPerH
	}
	app.limiter = ratelimit.NewRateLimiter(redisClient, limits, metrics)
	app.closers = append(app.closers, app.limiter.Close)

	sessions := session.NewService(app.store, engine, tokens,
		api.CompletionRecorder(repo, app.privacy, app.emitter, metrics))

	if cfg.AdminToken == "" {
		slog.Info("ADMIN_TOKEN is not set, admin routes are disabled")
	}

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = cfg.AllowedOrigins
	securityConfig.EnableHSTS = gin.Mode() == gin.ReleaseMode

	app.server = api.NewServer(api.Deps{
		Engine:      engine,
		Sessions:    sessions,
		DB:          db,
		Redis:       redisClient,
		Results:     repo,
		Leaderboard: app.board,
		Privacy:     app.privacy,
		Events:      app.emitter,
		Metrics:     metrics,
		Logger:      logger,
		Limiter:     app.limiter,
		Security:    securityConfig,
		AdminToken:  cfg.AdminToken,
	})
	app.closers = append(app.closers, app.server.Close)

	ok = true
	return app, nil
}

// start launches the background jobs. They stop when ctx is done.
func (a *application) start(ctx context.Context) {
	go func() {
		slog.Info("Warming up leaderboard cache")
		if err := a.board.UpdateLeaderboards(ctx); err != nil {
			slog.Error("Initial leaderboard update failed", "error", err)
		}
		a.board.WarmCache(ctx)
		a.board.StartAutoRefresh(ctx, a.cfg.LeaderboardRefresh)
	}()

	a.privacy.ScheduleDataCleanup(ctx, cleanupInterval)
}

// close releases resources in reverse order of creation.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
