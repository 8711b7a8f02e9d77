// Package http provides the gin-based HTTP transport used by docqa.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/middleware"
	options "github.com/kart-io/docqa/pkg/options/server/http"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine
	errCh  chan error

	mu     sync.RWMutex
	server *http.Server
	addr   string
}

// NewServer creates a new HTTP server with the given options.
// Recovery, request-id, request logging and CORS are installed before any
// route so every group inherits them.
func NewServer(opts *options.Options) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.MaxMultipartMemory = opts.MaxUploadSize
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(opts.SkipLogPaths...),
	)
	if len(opts.CORSAllowOrigins) > 0 {
		engine.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     opts.CORSAllowOrigins,
			AllowCredentials: opts.CORSAllowCredentials,
		}))
	}
	engine.GET("/version", middleware.Version())
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return &Server{
		opts:   opts,
		engine: engine,
		errCh:  make(chan error, 1),
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds the listen address and serves in the background. Bind errors
// are returned synchronously; later serve errors are delivered on Errors().
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	addr := ln.Addr().String()

	s.mu.Lock()
	s.server = srv
	s.addr = addr
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
	}()

	logger.Infow("HTTP server started", "addr", addr)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Errors reports fatal serve errors after Start returned.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
