// Package httpapi exposes the read-mostly query surface: catalog browsing,
// nearest-neighbor search and per-user match previews. It never writes the
// notification ledger; proactive delivery belongs to the matching engine.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/enrichment"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
)

const defaultShutdownTimeout = 10 * time.Second

// Server wires the stores and the optional embedder behind a gin router.
type Server struct {
	listings   storage.ListingStore
	users      storage.UserStore
	feedback   storage.FeedbackLedger
	embedder   enrichment.Embedder
	thresholds similarity.Thresholds
	logger     *zap.Logger
}

type Config struct {
	Listings   storage.ListingStore
	Users      storage.UserStore
	Feedback   storage.FeedbackLedger
	Embedder   enrichment.Embedder
	Thresholds similarity.Thresholds
	Logger     *zap.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Listings == nil || cfg.Users == nil {
		return nil, errors.New("listing and user stores are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	thresholds := cfg.Thresholds
	if thresholds.Full == 0 && thresholds.Vibe == 0 {
		thresholds = similarity.DefaultThresholds()
	}
	return &Server{
		listings:   cfg.Listings,
		users:      cfg.Users,
		feedback:   cfg.Feedback,
		embedder:   cfg.Embedder,
		thresholds: thresholds,
		logger:     cfg.Logger,
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/listings", s.listListings)
		api.GET("/listings/:id", s.getListing)
		api.POST("/search", s.search)
		api.GET("/users/:chat_id/matches", s.previewMatches)
		api.POST("/users/:chat_id/feedback", s.recordFeedback)
		api.GET("/users/:chat_id/feedback", s.listFeedback)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
