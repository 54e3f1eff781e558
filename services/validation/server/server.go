// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes validation status over HTTP for watch mode.
//
// Routes:
//
//	GET  /v1/validation/status - Last completed run (503 before the first)
//	GET  /v1/validation/log    - Recent log entries
//	POST /v1/validation/run    - Request a revalidation
//	GET  /v1/validation/health - Liveness
//	GET  /metrics              - Prometheus metrics
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianValidate/pkg/logging"
	"github.com/AleutianAI/AleutianValidate/pkg/telemetry"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// LogSource provides recent log entries.
type LogSource interface {
	Entries() []logging.LogEntry
}

// TriggerFunc requests a revalidation. It returns false when a request is
// already pending.
type TriggerFunc func() bool

// Handlers serves the validation routes.
type Handlers struct {
	state   *State
	logs    LogSource
	trigger TriggerFunc
	logger  *slog.Logger
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithLogSource enables the log route.
func WithLogSource(src LogSource) HandlerOption {
	return func(h *Handlers) { h.logs = src }
}

// WithTrigger enables the run route.
func WithTrigger(fn TriggerFunc) HandlerOption {
	return func(h *Handlers) { h.trigger = fn }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandlers creates handlers reading from state.
func NewHandlers(state *State, opts ...HandlerOption) *Handlers {
	h := &Handlers{state: state, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the response for GET /v1/validation/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the body of non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes registers the validation routes under rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	validation := rg.Group("/validation")
	{
		validation.GET("/status", h.HandleStatus)
		validation.GET("/log", h.HandleLog)
		validation.POST("/run", h.HandleRun)
		validation.GET("/health", h.HandleHealth)
	}
}

// HandleStatus handles GET /v1/validation/status.
//
// Response:
//
//	200 OK: Status
//	503 Service Unavailable: no run has completed yet
func (h *Handlers) HandleStatus(c *gin.Context) {
	st, ok := h.state.Current()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no validation run has completed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// HandleLog handles GET /v1/validation/log. Returns 404 when no log
// source is configured.
func (h *Handlers) HandleLog(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "log capture disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.logs.Entries()})
}

// HandleRun handles POST /v1/validation/run.
//
// Response:
//
//	202 Accepted: revalidation queued
//	409 Conflict: a revalidation is already pending
//	404 Not Found: triggering disabled
func (h *Handlers) HandleRun(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "manual runs disabled"})
		return
	}
	if !h.trigger() {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "a run is already pending"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// HandleHealth handles GET /v1/validation/health. Always 200 while running.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// requestLogger logs each request with its trace IDs.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		telemetry.LoggerWithTrace(c.Request.Context(), logger).Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// NewRouter builds the gin engine.
//
// Description:
//
//	Installs recovery, otelgin tracing and request logging, registers
//	the validation routes under /v1 and serves metrics at /metrics. A
//	nil metrics handler falls back to the default Prometheus registry.
//
// Inputs:
//
//	h - The route handlers.
//	serviceName - The otelgin service name.
//	metrics - The /metrics handler, or nil.
//
// Outputs:
//
//	*gin.Engine - The router.
func NewRouter(h *Handlers, serviceName string, metrics http.Handler) *gin.Engine {
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(requestLogger(h.logger))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
//
// Outputs:
//
//	error - Listen errors. Nil after a clean shutdown.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting validation status server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down validation status server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
