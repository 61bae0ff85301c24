// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/engine"
)

const defaultMaxBodyBytes int64 = 2 << 20

// Handlers translates HTTP requests into Runner calls.
type Handlers struct {
	log          *zap.Logger
	runner       Runner
	maxBodyBytes int64
}

func NewHandlers(logger *zap.Logger, runner Runner, maxBodyBytes int64) *Handlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handlers{
		log:          logger.Named("handlers"),
		runner:       runner,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the action endpoints on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Post("/seed-cookies", h.HandleSeedCookies)
	r.Post("/run", h.HandleRun)
}

type statusResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type seedCookiesRequest struct {
	Cookies []browser.Cookie `json:"cookies"`
}

// HandleHealth reports whether the browser session can be established.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Health(r.Context()); err != nil {
		h.log.Warn("Health check failed.", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, statusResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{OK: true})
}

// HandleSeedCookies installs cookies into the persistent session.
func (h *Handlers) HandleSeedCookies(w http.ResponseWriter, r *http.Request) {
	var req seedCookiesRequest
	if status, err := h.decode(w, r, &req); err != nil {
		respondJSON(w, status, statusResponse{Error: err.Error()})
		return
	}

	names, err := h.runner.SeedCookies(r.Context(), req.Cookies)
	if err != nil {
		h.log.Error("Seeding cookies failed.", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, statusResponse{Error: err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, struct {
		OK    bool     `json:"ok"`
		Added []string `json:"added"`
	}{OK: true, Added: names})
}

// HandleRun executes one action and returns its Result. Any produced
// Result is a 200, including ok=false.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if status, err := h.decode(w, r, &req); err != nil {
		respondJSON(w, status, statusResponse{Error: err.Error()})
		return
	}

	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnrecognizedAction) {
			status = http.StatusBadRequest
		}
		respondJSON(w, status, statusResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// decode reads a JSON body into dst. An empty body leaves dst zeroed.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", h.maxBodyBytes)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}
	return 0, nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
