package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/favmirror/internal/service"
	"github.com/iconidentify/favmirror/internal/storage"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource reports store and queue counters.
type StatsSource interface {
	Stats(ctx context.Context) (*service.Stats, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store       Pinger
	stats       StatsSource
	storagePath string
	logger      *slog.Logger

	diskUsage func(path string) (storage.DiskStats, error)
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, stats StatsSource, storagePath string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:       store,
		stats:       stats,
		storagePath: storagePath,
		logger:      logger,
		diskUsage:   storage.DiskUsage,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
	Queue     *service.Stats `json:"queue,omitempty"`
	Disk      *DiskResponse  `json:"disk,omitempty"`
}

// DiskResponse reports free space on the storage volume.
type DiskResponse struct {
	Path      string `json:"path"`
	FreeBytes uint64 `json:"free_bytes"`
	Total     uint64 `json:"total_bytes"`
	Free      string `json:"free"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now(),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness: store unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: now(),
			Error:     "store unavailable",
		})
		return
	}

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		h.logger.Warn("readiness: stats failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: now(),
			Error:     "stats unavailable",
		})
		return
	}

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: now(),
		Queue:     stats,
	}

	// Disk stats are informational; a failing probe doesn't fail readiness.
	if du, err := h.diskUsage(h.storagePath); err == nil {
		resp.Disk = &DiskResponse{
			Path:      h.storagePath,
			FreeBytes: du.Free,
			Total:     du.Total,
			Free:      humanize.IBytes(du.Free),
		}
	} else {
		h.logger.Debug("readiness: disk probe failed", "path", h.storagePath, "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
