// Package api exposes the relay over HTTP: the sync exchange, blob uploads
// and the operational endpoints.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/server/blob"
	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBlobSize     = 20 << 20 // 20 MiB, photo reports are phone camera JPEGs
)

// SyncHandler is the service port the API calls for POST /v1/sync.
type SyncHandler interface {
	HandleSync(ctx context.Context, req *syncmsg.Request) (*syncmsg.Response, error)
}

// Server is the relay's HTTP front.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	logger logging.Logger
}

// NewServer wires the routes. blobs may be nil, in which case the upload
// endpoint is not registered.
func NewServer(addr string, sync SyncHandler, blobs blob.Store, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		srv:    &http.Server{Addr: addr, Handler: engine},
		logger: logger,
	}

	engine.POST("/v1/sync", s.handleSync(sync))
	if blobs != nil {
		engine.POST("/v1/blobs", s.handleBlobUpload(blobs))
	}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info(ctx, "http server listening", "addr", s.srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleSync(sync SyncHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncmsg.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}

		resp, err := sync.HandleSync(c.Request.Context(), &req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleBlobUpload(blobs blob.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBlobSize+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		if len(data) == 0 || len(data) > maxBlobSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "blob must be between 1 byte and 20 MiB"})
			return
		}

		contentType := c.ContentType()
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		url, err := blobs.Upload(c.Request.Context(), data, contentType)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"url": url})
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	var verrs validation.Errors
	switch {
	case errors.Is(err, common.ErrUnknownRole) || errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
