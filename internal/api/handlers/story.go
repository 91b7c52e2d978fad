package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/datapulse/insight-engine/internal/models"
	"github.com/datapulse/insight-engine/internal/story"
)

// StoryHandler assembles narratives from the insights of retained runs.
type StoryHandler struct {
	runs   *RunStore
	logger *logrus.Logger
}

func NewStoryHandler(runs *RunStore, logger *logrus.Logger) *StoryHandler {
	return &StoryHandler{runs: runs, logger: logger}
}

type AssembleStoryRequest struct {
	RunID      string   `json:"run_id" binding:"required"`
	InsightIDs []string `json:"insight_ids" binding:"required,min=1"`
	// Visuals maps insight ids to the chart each is rendered by, as
	// declared by the visualization layer.
	Visuals          map[string]string `json:"visuals"`
	VisualizationIDs []string          `json:"visualization_ids"`
	Audience         models.Audience   `json:"audience"`
}

// Assemble builds a story from insights of a completed run. References to
// insights or visualizations outside the run are rejected.
func (h *StoryHandler) Assemble(c *gin.Context) {
	var req AssembleStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	switch req.Audience {
	case "", models.AudienceExecutive, models.AudienceAnalyst, models.AudienceGeneral:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown audience: " + string(req.Audience)})
		return
	}

	run, ok := h.runs.Get(req.RunID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	assembler := story.NewAssembler(run, req.Visuals, h.logger)
	result, err := assembler.Assemble(req.InsightIDs, req.VisualizationIDs, req.Audience)
	if err != nil {
		var refErr *story.UnknownReferenceError
		if errors.As(err, &refErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": refErr.Error()})
			return
		}
		h.logger.WithError(err).Error("Story assembly failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "story assembly failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
