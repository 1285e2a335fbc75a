// Package server provides the daemon's HTTP surface: the relay endpoint,
// a small REST chat API, health, and metrics.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lifebow/assistantd/internal/chat"
	"github.com/lifebow/assistantd/internal/relay"
)

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates the HTTP server. completer backs the REST API; the relay
// endpoint always executes directly through backend so relayed clients reach
// the providers, not another relay hop.
func New(completer chat.Completer, backend relay.Backend) *Server {
	e := echo.New()
	e.HideBanner = true

	handler := NewHandler(completer)
	relaySrv := relay.NewServer(backend)

	e.Use(middleware.Recover())

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/relay", echo.WrapHandler(relaySrv))

	e.POST("/v1/chat", handler.Chat)
	e.GET("/v1/models", handler.ListModels)

	return &Server{echo: e, handler: handler}
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, allowing Server to be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
