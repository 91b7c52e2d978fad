package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/datapulse/insight-engine/internal/engine"
	"github.com/datapulse/insight-engine/internal/middleware"
	"github.com/datapulse/insight-engine/internal/notify"
	"github.com/datapulse/insight-engine/internal/telemetry"
)

// digestTimeout bounds the background Telegram delivery after a run; the
// HTTP response never waits on it.
const digestTimeout = 30 * time.Second

// InsightHandler exposes the discovery engine over HTTP and retains
// completed runs for story assembly.
type InsightHandler struct {
	engine   *engine.Engine
	runs     *RunStore
	notifier *notify.TelegramNotifier
	logger   *logrus.Logger
}

func NewInsightHandler(eng *engine.Engine, runs *RunStore, notifier *notify.TelegramNotifier, logger *logrus.Logger) *InsightHandler {
	return &InsightHandler{
		engine:   eng,
		runs:     runs,
		notifier: notifier,
		logger:   logger,
	}
}

type DiscoverRequest struct {
	MetricIDs  []string `json:"metric_ids" binding:"required,min=1"`
	PeriodDays int      `json:"period_days" binding:"required,min=1"`
}

// Discover runs a synthesis pass over the requested metrics and returns
// the ranked insights. The run is retained for later story assembly.
func (h *InsightHandler) Discover(c *gin.Context) {
	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx, span := telemetry.GetEngineTracer().Start(c.Request.Context(), "engine.Synthesize")
	span.SetAttributes(
		attribute.Int("insights.metric_count", len(req.MetricIDs)),
		attribute.Int("insights.period_days", req.PeriodDays),
	)
	run, err := h.engine.Synthesize(ctx, req.MetricIDs, req.PeriodDays)
	span.End()

	if err != nil {
		middleware.RecordError(c, err, "insight synthesis failed")
		if ctx.Err() != nil {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "synthesis cancelled: " + err.Error()})
			return
		}
		h.logger.WithError(err).Error("Insight synthesis failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	middleware.AddSpanAttribute(c, "insights.count", len(run.Insights))
	h.runs.Put(run)

	if h.notifier != nil && h.notifier.Enabled() {
		go func(r *engine.RunResult) {
			digestCtx, cancel := context.WithTimeout(context.Background(), digestTimeout)
			defer cancel()
			if err := h.notifier.SendRunDigest(digestCtx, r); err != nil {
				h.logger.WithError(err).Warn("Failed to deliver insight digest")
			}
		}(run)
	}

	c.JSON(http.StatusOK, run)
}

// GetRun returns a previously completed synthesis run by id.
func (h *InsightHandler) GetRun(c *gin.Context) {
	runID := c.Param("id")
	run, ok := h.runs.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}
