package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthHandler reports database reachability and host memory.
type HealthHandler struct {
	db      *sql.DB
	started time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

type memoryStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

type healthResponse struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Uptime   string       `json:"uptime"`
	Memory   *memoryStats `json:"memory,omitempty"`
}

// Get reports 200 when the database answers a ping, 503 otherwise.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: database ping failed")
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Memory = &memoryStats{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		log.Warn().Err(err).Msg("Health check: could not read host memory")
	}

	writeJSON(w, status, resp)
}
