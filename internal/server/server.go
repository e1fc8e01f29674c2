package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/songzhibin97/xrplfeed/internal/data"
	"github.com/songzhibin97/xrplfeed/internal/feed"
	"github.com/songzhibin97/xrplfeed/internal/models"
	"github.com/songzhibin97/xrplfeed/internal/netstats"
)

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// Feed is the controller surface the API exposes; *feed.Controller satisfies it.
type Feed interface {
	State() feed.State
	SetSearchTerm(term string)
	Refresh(ctx context.Context) error
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	Network() netstats.Snapshot
	OnChange(fn func())
}

type FavoritesView interface {
	IDs() []string
}

type TickerToggle interface {
	Enabled() bool
	Toggle(ctx context.Context) (bool, error)
}

type StatusSource interface {
	FetchServerStatus(ctx context.Context) (*models.ServerStatus, error)
}

// RateSource reports the reference rate with its latest move;
// *collector.MultiSourceOracle satisfies it.
type RateSource interface {
	RateSnapshot(ctx context.Context) (models.RateSnapshot, error)
}

// PageSource serves one page straight from the metadata API; *xrplmeta.Client satisfies it.
type PageSource interface {
	FetchTokenPage(ctx context.Context, params data.PageParams) ([]models.Token, error)
}

type Deps struct {
	Feed      Feed
	Favorites FavoritesView
	Tickers   TickerToggle
	Oracle    RateSource
	Status    StatusSource
	Pages     PageSource
}

type Server struct {
	deps       Deps
	logger     Logger
	engine     *gin.Engine
	hub        *Hub
	httpServer *http.Server
}

func New(addr string, deps Deps, logger Logger, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		deps:   deps,
		logger: logger,
		engine: gin.New(),
		hub:    NewHub(logger),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	deps.Feed.OnChange(s.publish)
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/tokens", s.getTokens)
	api.GET("/tokens/top", s.getTopTokens)
	api.POST("/search", s.postSearch)
	api.POST("/refresh", s.postRefresh)
	api.GET("/favorites", s.getFavorites)
	api.POST("/favorites/:id/toggle", s.toggleFavorite)
	api.GET("/preferences/tickers", s.getTickers)
	api.POST("/preferences/tickers/toggle", s.toggleTickers)
	api.GET("/rate", s.getRate)
	api.GET("/network", s.getNetwork)
	api.GET("/server-status", s.getServerStatus)
	api.GET("/health", s.getHealth)

	s.engine.GET("/ws", s.handleWebSocket)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the push hub and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.publish()

	s.logger.Info("starting api server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// publish pushes the current feed and network state to every socket client.
func (s *Server) publish() {
	s.hub.Broadcast(&Message{
		Type:      MessageUpdate,
		Feed:      s.deps.Feed.State(),
		Network:   s.deps.Feed.Network(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	})
}
