package admin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leonardcser/kvd/internal/cache"
	"github.com/leonardcser/kvd/internal/logger"
	"github.com/leonardcser/kvd/internal/pool"
)

// Stats is the body of GET /stats.
type Stats struct {
	Cache cache.Stats `json:"cache"`
	Sets  int         `json:"sets"`
	Slots int         `json:"slotsPerSet"`
	Pool  PoolStats   `json:"pool"`
}

type PoolStats struct {
	Workers int `json:"workers"`
	Pending int `json:"pending"`
}

// NewRouter builds the read-only diagnostics API:
//
//	GET /health  liveness
//	GET /cache   XML dump of every cache set
//	GET /stats   cache and pool counters
func NewRouter(c *cache.Cache, p *pool.Pool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/cache", func(ctx *gin.Context) {
		var buf bytes.Buffer
		if err := c.WriteXML(&buf); err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.Data(http.StatusOK, "application/xml; charset=utf-8", buf.Bytes())
	})

	r.GET("/stats", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, Stats{
			Cache: c.Stats(),
			Sets:  c.NumSets(),
			Slots: c.MaxElemsPerSet(),
			Pool:  PoolStats{Workers: p.Size(), Pending: p.Pending()},
		})
	})

	return r
}

// Serve runs the diagnostics API on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("admin: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Debugf("admin: %s %s -> %d (%s)", ctx.Request.Method, ctx.Request.URL.Path,
			ctx.Writer.Status(), time.Since(start))
	}
}
