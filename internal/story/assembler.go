package story

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/datapulse/insight-engine/internal/engine"
	"github.com/datapulse/insight-engine/internal/models"
)

// UnknownReferenceError reports an insight or visualization id that is not
// part of the current run.
type UnknownReferenceError struct {
	Kind string // "insight" or "visualization"
	ID   string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown %s reference %q", e.Kind, e.ID)
}

// Assembler groups a run's insights into an ordered narrative structure.
// It performs no statistics of its own; all numbers come from the run.
type Assembler struct {
	insights    map[string]models.Insight
	declaredViz map[string]string // insight id -> visualization id
	logger      *logrus.Logger
	titleCaser  cases.Caser
}

// NewAssembler builds an assembler over one synthesis run. declaredViz maps
// insight ids to the visualization each insight is charted by; it comes
// from the external visualization layer and may be sparse.
func NewAssembler(run *engine.RunResult, declaredViz map[string]string, logger *logrus.Logger) *Assembler {
	byID := make(map[string]models.Insight, len(run.Insights))
	for _, insight := range run.Insights {
		byID[insight.ID] = insight
	}
	return &Assembler{
		insights:    byID,
		declaredViz: declaredViz,
		logger:      logger,
		titleCaser:  cases.Title(language.English),
	}
}

// Assemble selects the referenced insights, groups them by type in the
// ranking precedence order, and attaches each insight's declared
// visualization when it appears in visualizationIDs. Any reference outside
// the current run fails the call.
func (a *Assembler) Assemble(insightIDs, visualizationIDs []string, audience models.Audience) (*models.Story, error) {
	if audience == "" {
		audience = models.AudienceGeneral
	}

	knownViz := make(map[string]bool, len(visualizationIDs))
	for _, vizID := range visualizationIDs {
		knownViz[vizID] = true
	}

	declared := make(map[string]bool, len(a.declaredViz))
	for _, vizID := range a.declaredViz {
		declared[vizID] = true
	}
	for _, vizID := range visualizationIDs {
		if !declared[vizID] {
			return nil, &UnknownReferenceError{Kind: "visualization", ID: vizID}
		}
	}

	var selected []models.Insight
	for _, insightID := range insightIDs {
		insight, ok := a.insights[insightID]
		if !ok {
			return nil, &UnknownReferenceError{Kind: "insight", ID: insightID}
		}
		selected = append(selected, insight)
	}

	// Group by type, groups ordered by the ranking precedence, insights
	// inside a group keeping their run order.
	sort.SliceStable(selected, func(i, j int) bool {
		return models.TypePrecedence(selected[i].Type) < models.TypePrecedence(selected[j].Type)
	})

	var visuals []string
	seenViz := make(map[string]bool)
	for _, insight := range selected {
		vizID, ok := a.declaredViz[insight.ID]
		if !ok || !knownViz[vizID] || seenViz[vizID] {
			continue
		}
		visuals = append(visuals, vizID)
		seenViz[vizID] = true
	}

	story := &models.Story{
		ID:                uuid.New().String(),
		Title:             a.storyTitle(selected),
		Audience:          audience,
		KeyInsights:       selected,
		SupportingVisuals: visuals,
		NarrativeOutline:  a.outline(selected, audience),
		CreatedAt:         time.Now().UTC(),
	}

	a.logger.WithFields(logrus.Fields{
		"story_id": story.ID,
		"insights": len(selected),
		"visuals":  len(visuals),
	}).Info("Assembled insight story")

	return story, nil
}

func (a *Assembler) storyTitle(insights []models.Insight) string {
	if len(insights) == 0 {
		return "No Notable Findings"
	}

	metrics := make(map[string]bool)
	for _, insight := range insights {
		for _, metricID := range insight.Metrics {
			metrics[metricID] = true
		}
	}

	lead := insights[0]
	subject := a.titleCaser.String(strings.ReplaceAll(lead.Metrics[0], "_", " "))
	if len(metrics) > 1 {
		return fmt.Sprintf("%s and %d Other Metrics: Key Findings", subject, len(metrics)-1)
	}
	return fmt.Sprintf("%s: Key Findings", subject)
}

// outline produces one line per type group plus a closing line. It is a
// structured skeleton for presentation, not generated prose.
func (a *Assembler) outline(insights []models.Insight, audience models.Audience) []string {
	if len(insights) == 0 {
		return []string{"No insights met the reporting thresholds for this period."}
	}

	counts := make(map[models.InsightType]int)
	for _, insight := range insights {
		counts[insight.Type]++
	}

	var outline []string
	for _, insightType := range []models.InsightType{
		models.InsightTypeAnomaly,
		models.InsightTypeTrend,
		models.InsightTypeCorrelation,
		models.InsightTypeForecast,
	} {
		n := counts[insightType]
		if n == 0 {
			continue
		}
		outline = append(outline, fmt.Sprintf("%s findings: %d", a.titleCaser.String(string(insightType)), n))
	}

	if audience == models.AudienceExecutive {
		outline = append(outline, "Summary: lead with the highest-ranked finding and its recommendation")
	} else {
		outline = append(outline, "Details: evidence and statistics attached per insight")
	}
	return outline
}
