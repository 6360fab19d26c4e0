package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/history"
	"github.com/guarzo/fbascout/internal/metrics"
	"github.com/guarzo/fbascout/internal/model"
)

// RunStore is the subset of the run history the API reads and writes.
type RunStore interface {
	SaveReport(ctx context.Context, rep *bulk.Report) error
	GetReport(ctx context.Context, id string) (*bulk.Report, error)
	ListReports(ctx context.Context, limit int) ([]*bulk.Report, error)
	ASINHistory(ctx context.Context, asin string, limit int) ([]model.AnalyticsRecord, error)
}

const defaultJobTTL = time.Hour

// Options wires the server's collaborators. Store, Feeds and Metrics are
// optional. Finished batches are forgotten JobTTL after they end; stored
// runs stay available under /runs.
type Options struct {
	Processor *bulk.Processor
	Profile   model.CostProfile
	Store     RunStore
	Feeds     history.FeedFetcher
	Metrics   *metrics.Metrics
	JobTTL    time.Duration
}

type job struct {
	batch    *bulk.Batch
	cancel   context.CancelFunc
	done     chan struct{}
	report   *bulk.Report
	finished time.Time
}

// Server exposes the analytics engine over HTTP.
type Server struct {
	opts   Options
	engine *gin.Engine

	mu   sync.Mutex
	jobs map[string]*job
	now  func() time.Time

	// base is the parent context of every batch; cancelled on Shutdown.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds the gin engine and registers every route.
func NewServer(opts Options) *Server {
	if opts.Profile == (model.CostProfile{}) {
		opts.Profile = model.DefaultCostProfile()
	}
	opts.Profile.UnitsPerPack = max(opts.Profile.UnitsPerPack, 1)
	if opts.JobTTL <= 0 {
		opts.JobTTL = defaultJobTTL
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		jobs:   map[string]*job{},
		now:    time.Now,
		base:   base,
		cancel: cancel,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	s.routes(r)
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/classify/:id", s.classify)
		v1.POST("/fees", s.computeFees)
		v1.POST("/history/decode", s.decodeHistory)
		v1.GET("/history/:asin", s.fetchHistory)

		batches := v1.Group("/batches")
		batches.POST("", s.startBatch)
		batches.GET("/:id", s.getBatch)
		batches.DELETE("/:id", s.cancelBatch)
		batches.GET("/:id/export.csv", s.exportCSV)
		batches.GET("/:id/export.xlsx", s.exportXLSX)

		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
		v1.GET("/asins/:asin/runs", s.asinRuns)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and cancels running batches.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Shutdown()
	return err
}

// Shutdown cancels running batches and waits for them to record their
// reports.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
