package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/port"
	"github.com/vertextoedge/swiftsaver/internal/service/downloads"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:       "127.0.0.1:8080",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// Downloads is the task registry as seen by the API
type Downloads interface {
	CreateTask(req downloads.CreateRequest) (*domain.DownloadTask, error)
	StartDownload(ctx context.Context, id, downloadURL string) error
	PauseDownload(id string) error
	ResumeDownload(ctx context.Context, id, downloadURL string) error
	CancelDownload(id string) error
	RetryDownload(ctx context.Context, id, downloadURL string) error
	RemoveTask(id string) bool
	ClearCompleted() int
	Task(id string) (*domain.DownloadTask, error)
	Tasks() []*domain.DownloadTask
	TasksByStatus(status domain.Status) []*domain.DownloadTask
	Subscribe(fn func([]*domain.DownloadTask)) func()
	SubscribeProgress(fn func(domain.DownloadProgress)) func()
}

// Library is the file index as seen by the API
type Library interface {
	Dir() string
	ListMediaFiles(ctx context.Context) []domain.MediaFile
	DeleteFile(path string) bool
	StorageUsage() domain.StorageInfo
	CopyToShareableLocation(path, suggestedName string) (string, bool)
	RenameFile(oldPath, newName string) (string, bool)
	ClearAll() bool
}

// Preferences is the settings service as seen by the API
type Preferences interface {
	Get() *domain.Settings
	Update(ctx context.Context, fn func(*domain.Settings)) (*domain.Settings, error)
	Reset(ctx context.Context) (*domain.Settings, error)
}

// Accounts is the session service as seen by the API
type Accounts interface {
	Enabled() bool
	Current() *domain.Session
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	TrackPageView(ctx context.Context, page string) error
}

// Pinger reports storage health
type Pinger interface {
	Ping() error
}

// MetricsSource exposes event counters
type MetricsSource interface {
	GetMetrics() map[string]int64
}

// Deps are the services behind the API. Store, Events and Metrics may be nil.
type Deps struct {
	Resolver    port.MetadataResolver
	Downloads   Downloads
	Library     Library
	Preferences Preferences
	Accounts    Accounts
	Store       Pinger
	Events      event.EventDispatcher
	Metrics     MetricsSource
}

// Server represents the HTTP API server
type Server struct {
	config *Config
	deps   Deps
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server
}

// New creates a new HTTP server
func New(cfg *Config, deps Deps, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggingMiddleware(logger), cors.New(corsConfig(cfg.AllowedOrigins)))

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
		engine: engine,
	}
	s.routes()

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/api/stats", s.handleStats)

	api := s.engine.Group("/api")
	api.POST("/resolve", s.handleResolve)

	api.GET("/downloads", s.handleListDownloads)
	api.POST("/downloads", s.handleCreateDownload)
	api.DELETE("/downloads", s.handleClearCompleted)
	api.GET("/downloads/:id", s.handleGetDownload)
	api.DELETE("/downloads/:id", s.handleRemoveDownload)
	api.POST("/downloads/:id/start", s.handleStartDownload)
	api.POST("/downloads/:id/pause", s.handlePauseDownload)
	api.POST("/downloads/:id/resume", s.handleResumeDownload)
	api.POST("/downloads/:id/cancel", s.handleCancelDownload)
	api.POST("/downloads/:id/retry", s.handleRetryDownload)

	api.GET("/library", s.handleListLibrary)
	api.DELETE("/library", s.handleClearLibrary)
	api.DELETE("/library/file", s.handleDeleteFile)
	api.POST("/library/share", s.handleShareFile)
	api.POST("/library/rename", s.handleRenameFile)
	api.GET("/storage", s.handleStorage)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleUpdateSettings)
	api.POST("/settings/reset", s.handleResetSettings)

	api.GET("/session", s.handleGetSession)
	api.POST("/session/sign-in", s.handleSignIn)
	api.POST("/session/sign-up", s.handleSignUp)
	api.POST("/session/sign-out", s.handleSignOut)
	api.POST("/analytics/page-view", s.handlePageView)

	api.GET("/events", s.handleEvents)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, Failure{Error: "Database connection failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStats returns download counters and the current task breakdown
func (s *Server) handleStats(c *gin.Context) {
	byStatus := make(map[domain.Status]int, len(domain.AllStatuses))
	for _, t := range s.deps.Downloads.Tasks() {
		byStatus[t.Status]++
	}

	counters := map[string]int64{}
	if s.deps.Metrics != nil {
		counters = s.deps.Metrics.GetMetrics()
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":    byStatus,
		"counters": counters,
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
