package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hubrelay/internal/cache"
	"hubrelay/internal/constants"
	"hubrelay/internal/database"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// healthServer exposes liveness and readiness probes for the relay.
type healthServer struct {
	srv    *http.Server
	db     *database.Database
	cache  *cache.Client
	logger *logrus.Logger
}

func newHealthServer(port int, db *database.Database, cache *cache.Client, logger *logrus.Logger) *healthServer {
	h := &healthServer{db: db, cache: cache, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)

	h.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}
	return h
}

func (h *healthServer) run() error {
	if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (h *healthServer) shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}

func (h *healthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *healthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "cache": "ok"}
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Readiness check: database unreachable")
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Readiness check: cache unreachable")
		checks["cache"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, checks)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
