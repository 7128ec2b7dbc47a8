package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type HTTPServer struct {
	server *http.Server
	logger logger.Logger
	addr   net.Addr
}

type ServerConfig struct {
	Port string
	// ReadHeaderTimeout bounds slow clients. Write timeouts are left unset:
	// synchronous pipeline runs hold the response open for minutes.
	ReadHeaderTimeout time.Duration
}

// NewHTTPServer binds the port when the app starts, so a port already in use
// fails startup instead of killing the process later.
func NewHTTPServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	config ServerConfig,
	log logger.Logger,
) *HTTPServer {
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}

	s := &HTTPServer{
		server: &http.Server{
			Addr:              ":" + config.Port,
			Handler:           router,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		logger: log.With(logger.String("component", "http_server")),
	}

	lc.Append(fx.Hook{
		OnStart: s.start,
		OnStop: func(ctx context.Context) error {
			s.logger.Info("shutting down HTTP server")
			return s.server.Shutdown(ctx)
		},
	})
	return s
}

func (s *HTTPServer) start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr()
	s.logger.Info("HTTP server listening", logger.String("addr", s.addr.String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", logger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, nil before start.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}
