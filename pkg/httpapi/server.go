package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakechorley/autoroster/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// Deps are the services behind the API. Metrics may be nil.
type Deps struct {
	Ledger  PriorityLedger
	Trips   TripOpener
	Metrics *metrics.Metrics
}

// NewRouter registers every route on a new gin engine
func NewRouter(deps Deps, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(logger))
	r.Use(Metrics(deps.Metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api")

	priorities := NewPriorityHandler(deps.Ledger)
	api.GET("/priorities", priorities.List)
	api.GET("/priorities/:email", priorities.Get)
	api.POST("/priorities/adjust", priorities.Adjust)
	api.POST("/priorities/batch", priorities.AdjustBatch)

	rosters := NewRosterHandler(deps.Trips)
	api.POST("/roster/capacity", rosters.Capacity)
	api.POST("/roster/allocate", rosters.Allocate)
	api.POST("/roster/manual", rosters.Manual)
	api.POST("/roster/compare", rosters.Compare)

	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
