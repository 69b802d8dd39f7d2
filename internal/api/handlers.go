package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/status"
)

// EscalationSource exposes the control plane's escalation records.
type EscalationSource interface {
	Records() map[string]models.EscalationRecord
}

// MetricStore exposes the sink's read side and its liveness check.
type MetricStore interface {
	Ping(ctx context.Context) error
	GetMetricRecords(ctx context.Context, name string, limit int) ([]models.MetricRecord, error)
}

type Handler struct {
	agg         *status.Aggregator
	escalations EscalationSource
	store       MetricStore
	hub         *Hub
	logger      *logging.Logger
}

func NewHandler(agg *status.Aggregator, escalations EscalationSource, store MetricStore, hub *Hub, logger *logging.Logger) *Handler {
	return &Handler{agg: agg, escalations: escalations, store: store, hub: hub, logger: logger}
}

// Healthz reports process liveness and sink reachability.
func (h *Handler) Healthz(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Errorf("Sink ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "metrics sink unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Monitor returns the consolidated status view: each target's state
// plus the aggregate critical flag. Reads the latest completed poll;
// never waits for a probe in flight.
func (h *Handler) Monitor(c *gin.Context) {
	snap := h.agg.Snapshot()
	targets := make(map[string]string, len(snap))
	for name, st := range snap {
		targets[name] = string(st.State)
	}
	c.JSON(http.StatusOK, gin.H{
		"targets":         targets,
		"all_critical_ok": h.agg.AllCriticalOK(),
	})
}

// Targets returns the full per-target detail map.
func (h *Handler) Targets(c *gin.Context) {
	c.JSON(http.StatusOK, h.agg.Snapshot())
}

// Target returns one target's detail.
func (h *Handler) Target(c *gin.Context) {
	name := c.Param("name")
	snap := h.agg.Snapshot()
	st, ok := snap[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Escalations returns the control plane's current escalation records.
func (h *Handler) Escalations(c *gin.Context) {
	records := h.escalations.Records()
	out := make(map[string]gin.H, len(records))
	for name, rec := range records {
		out[name] = gin.H{
			"level":       rec.Level.String(),
			"entered_at":  rec.EnteredAt,
			"retry_count": rec.RetryCount,
			"last_error":  rec.LastAttemptErr,
		}
	}
	c.JSON(http.StatusOK, out)
}

// Metrics returns recent sink samples for one metric name.
func (h *Handler) Metrics(c *gin.Context) {
	name := c.Param("name")
	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}

	records, err := h.store.GetMetricRecords(c.Request.Context(), name, limit)
	if err != nil {
		h.logger.Errorf("Failed to get metric records for %s: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get metric records"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// Stream upgrades to a websocket and pushes transition events.
func (h *Handler) Stream(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
