package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datapulse/insight-engine/internal/database"
	"github.com/datapulse/insight-engine/internal/monitor"
)

var startTime = time.Now()

type HealthHandler struct {
	db      *database.PostgresDB
	redis   *database.RedisClient
	monitor *monitor.ResourceMonitor
}

type HealthResponse struct {
	Status    string               `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Version   string               `json:"version"`
	Uptime    string               `json:"uptime"`
	Services  map[string]string    `json:"services"`
	Resources *monitor.RuntimeStats `json:"resources,omitempty"`
}

func NewHealthHandler(db *database.PostgresDB, redis *database.RedisClient, rm *monitor.ResourceMonitor) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, monitor: rm}
}

// Check reports component health plus a resource snapshot. Any unhealthy
// dependency degrades the overall status to 503.
func (h *HealthHandler) Check(c *gin.Context) {
	services := make(map[string]string)

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "unhealthy: not configured"
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "unhealthy: not configured"
	}

	status := "healthy"
	for _, s := range services {
		if s != "healthy" {
			status = "degraded"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Services:  services,
	}
	if h.monitor != nil {
		stats := h.monitor.Stats()
		response.Resources = &stats
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}
