package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
)

const readyTimeout = 2 * time.Second

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Cars   int    `json:"cars,omitempty"`
}

// Pinger is the durable store the booking ledger lives in.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   Pinger
	catalog func() int
	log     *logger.Logger
}

// NewHealthHandler reports readiness from store and the loaded catalog size.
// A nil catalog func skips the catalog check.
func NewHealthHandler(store Pinger, catalog func() int, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		catalog: catalog,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	cars := 0
	if h.catalog != nil {
		cars = h.catalog()
	}

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Store health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		h.writeReady(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Store: "error", Cars: cars})
		return
	}

	if h.catalog != nil && cars == 0 {
		h.log.Warn("Catalog is empty", "path", r.URL.Path)
		h.writeReady(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Store: "ok"})
		return
	}

	h.writeReady(w, http.StatusOK, HealthResponse{Status: "ready", Store: "ok", Cars: cars})
}

func (h *HealthHandler) writeReady(w http.ResponseWriter, status int, body HealthResponse) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
