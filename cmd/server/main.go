package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gitprofile/analyzer/internal/adapters"
	"github.com/gitprofile/analyzer/internal/analysis"
	"github.com/gitprofile/analyzer/internal/cache"
	"github.com/gitprofile/analyzer/internal/database"
	"github.com/gitprofile/analyzer/internal/errors"
	"github.com/gitprofile/analyzer/internal/insights"
	"github.com/gitprofile/analyzer/internal/monitoring"
	"github.com/gitprofile/analyzer/internal/privacy"
	"github.com/gitprofile/analyzer/internal/ratelimit"
	"github.com/gitprofile/analyzer/internal/resilience"
	"github.com/gitprofile/analyzer/internal/security"
)

const serverVersion = "1.0.0"

type config struct {
	Port          string
	DataDir       string
	GitHubToken   string
	GeminiAPIKey  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RetentionDays int
	CacheTTL      time.Duration
	AnalyzeLimit  int
}

func loadConfig() config {
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			redisDB = parsed
		}
	}

	retentionDays := 365
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			retentionDays = parsed
		}
	}

	analyzeLimit := 10
	if v := os.Getenv("ANALYZE_RATE_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			analyzeLimit = parsed
		}
	}

	return config{
		Port:          getEnvOrDefault("PORT", "8080"),
		DataDir:       getEnvOrDefault("DATA_DIR", "./data"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RetentionDays: retentionDays,
		CacheTTL:      15 * time.Minute,
		AnalyzeLimit:  analyzeLimit,
	}
}

// application holds the wired services behind the HTTP surface.
type application struct {
	cfg      config
	db       *database.DB
	store    *database.Store
	engine   *analysis.Engine
	github   *adapters.GitHubAdapter
	gemini   *insights.GeminiClient
	insights *insights.Service
	cache    *cache.Cache
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	limiter  *ratelimit.RateLimiter
	redis    *ratelimit.RedisClient
	privacy  *privacy.PrivacyService
	security *security.SecurityMiddleware
}

func newApplication(cfg config) (*application, error) {
	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.AnalyzePerMin = cfg.AnalyzeLimit

	store := database.NewStore(db)

	app := &application{
		cfg:      cfg,
		db:       db,
		store:    store,
		engine:   analysis.NewEngine(store),
		github:   adapters.NewGitHubAdapter(cfg.GitHubToken),
		cache:    cache.NewCache(cfg.CacheTTL),
		metrics:  metrics,
		logger:   monitoring.NewLogger(),
		limiter:  ratelimit.NewRateLimiter(redisClient, limiterConfig, metrics),
		redis:    redisClient,
		privacy:  privacy.NewService(db, cfg.RetentionDays, cfg.CacheTTL),
		security: security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
	}

	if cfg.GeminiAPIKey != "" {
		app.gemini = insights.NewGeminiClient(cfg.GeminiAPIKey)
		app.insights = insights.NewService(app.gemini)
	} else {
		slog.Warn("GEMINI_API_KEY not configured, recommendations will use the deterministic fallback")
		app.insights = insights.NewService(nil)
	}

	return app, nil
}

func (app *application) setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.MonitoringMiddleware(app.metrics, app.logger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = security.DefaultSecurityConfig().AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(corsConfig))

	r.Use(app.security.SecurityHeaders)
	r.Use(app.security.RequestTimeout)
	r.Use(app.security.ValidateContentType)
	r.Use(app.limiter.IPRateLimitMiddleware())
	r.Use(app.cache.Middleware(app.metrics))

	r.POST("/analyze",
		app.limiter.AnalyzeRateLimitMiddleware(),
		app.security.ValidateAnalyzeRequest,
		app.handleAnalyze)

	r.GET("/history/:username", app.handleHistory)
	r.GET("/recommendations/:username", app.handleRecommendations)

	r.GET("/health", app.handleHealth)

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.metrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.cache.Stats())
	})

	r.GET("/pools/github", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "github",
			"stats": app.github.GetPoolStats(),
		})
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": app.db.GetPoolStats(),
		})
	})

	if app.gemini != nil {
		r.GET("/pools/gemini", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"pool":  "gemini",
				"stats": app.gemini.GetPoolStats(),
			})
		})
	}

	r.GET("/privacy/policy", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.privacy.GetDataRetentionInfo())
	})

	r.POST("/privacy/delete/:username", app.handlePrivacyDelete)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func (app *application) handleAnalyze(c *gin.Context) {
	start := time.Now()

	username := c.GetString("sanitized_username")
	userID := strings.ToLower(username)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	slog.Info("Starting analysis", "username", username, "ip", c.ClientIP())

	profile, err := app.github.FetchProfile(ctx, username)
	app.metrics.IncrementGitHubCalls()
	if err != nil {
		if stderrors.Is(err, adapters.ErrUserNotFound) {
			appErr := errors.NewNotFoundError("github user", username)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		app.metrics.RecordExternalAPIRequest("github", false)
		appErr := errors.NewExternalAPIError("GitHub", err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	app.metrics.RecordExternalAPIRequest("github", true)

	sources, err := app.github.FetchAllSources(ctx, username)
	if err != nil {
		// Individual source failures degrade to empty lists, this only
		// fires when the whole fan-out fails
		slog.Warn("Repository fetch failed, scoring profile data only", "username", username, "error", err)
		sources = &adapters.RepositorySources{}
	}

	repos := analysis.NormalizeRepositories(sources.Pinned, sources.TopStarred, sources.Recent)

	if err := app.store.SaveRepositories(ctx, userID, repos); err != nil {
		slog.Warn("Failed to persist repository snapshot", "username", username, "error", err)
	}

	score := app.engine.ComputeScore(ctx, userID, repos, *profile)

	insight, generatedBy := app.insights.Generate(ctx, *profile, repos, score)
	if generatedBy == "gemini" {
		app.metrics.IncrementGeminiCalls()
	}

	if err := app.store.SaveRecommendations(ctx, userID, score.AnalysisID, insight, generatedBy); err != nil {
		slog.Warn("Failed to persist recommendations", "username", username, "error", err)
	}

	app.metrics.IncrementAnalyses()
	app.logger.AnalysisLogger(username, score.Overall, score.Improvement, len(repos), time.Since(start), false)

	c.JSON(http.StatusOK, gin.H{
		"username":              profile.Username,
		"profile":               profile,
		"score":                 score,
		"insight":               insight,
		"generated_by":          generatedBy,
		"repositories_analyzed": len(repos),
	})
}

func (app *application) handleHistory(c *gin.Context) {
	username := app.security.SanitizeUsername(c.Param("username"))
	if err := app.security.ValidateUsername(username); err != nil {
		appErr := errors.NewValidationError(err.Error())
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	records, err := app.store.RecentScores(c.Request.Context(), strings.ToLower(username), limit)
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	entries := make([]gin.H, 0, len(records))
	for _, rec := range records {
		entry := gin.H{
			"overall_score": rec.OverallScore,
			"improvement":   rec.Improvement,
			"analysis_id":   rec.AnalysisID,
			"created_at":    rec.CreatedAt,
		}

		dims, err := rec.DecodeDimensions()
		if err != nil {
			slog.Warn("Skipping undecodable dimension payload", "analysis_id", rec.AnalysisID, "error", err)
		} else {
			entry["dimensions"] = dims
		}

		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"username": username,
		"history":  entries,
		"count":    len(entries),
	})
}

func (app *application) handleRecommendations(c *gin.Context) {
	username := app.security.SanitizeUsername(c.Param("username"))
	if err := app.security.ValidateUsername(username); err != nil {
		appErr := errors.NewValidationError(err.Error())
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	rec, err := app.store.LatestRecommendations(c.Request.Context(), strings.ToLower(username))
	if err != nil {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if rec == nil {
		appErr := errors.NewNotFoundError("recommendations", username)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":     username,
		"analysis_id":  rec.AnalysisID,
		"generated_by": rec.GeneratedBy,
		"insight":      json.RawMessage(rec.Recommendations),
		"created_at":   rec.CreatedAt,
	})
}

func (app *application) handlePrivacyDelete(c *gin.Context) {
	username := app.security.SanitizeUsername(c.Param("username"))
	if err := app.security.ValidateUsername(username); err != nil {
		appErr := errors.NewValidationError(err.Error())
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	if err := app.privacy.DeleteUserData(c.Request.Context(), username); err != nil {
		app.logger.APIErrorLogger(err, "POST", "/privacy/delete/"+username, c.ClientIP(), http.StatusInternalServerError)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user data"})
		return
	}

	app.cache.InvalidateUser(username)

	c.JSON(http.StatusOK, gin.H{
		"message":  "user data deleted successfully",
		"username": username,
	})
}

func (app *application) handleHealth(c *gin.Context) {
	redisStatus := "disabled"
	if app.redis.IsEnabled() {
		if err := app.redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = "unhealthy"
		} else {
			redisStatus = "healthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"version":          serverVersion,
		"timestamp":        time.Now().Format(time.RFC3339),
		"redis":            redisStatus,
		"circuit_breakers": resilience.GetCircuitBreakerStats(),
		"rate_limiter":     app.limiter.GetStats(),
	})
}

func (app *application) close() {
	if err := app.github.Close(); err != nil {
		slog.Warn("Failed to close GitHub connection pool", "error", err)
	}
	if app.gemini != nil {
		if err := app.gemini.Close(); err != nil {
			slog.Warn("Failed to close Gemini connection pool", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	app, err := newApplication(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer app.close()

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	app.privacy.ScheduleDataCleanup(cleanupCtx, 24*time.Hour)

	r := app.setupRouter()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "version", serverVersion)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
