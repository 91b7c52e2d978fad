package models

import "time"

// Audience identifies who a story is being assembled for. It only affects
// presentation ordering and wording, never statistics.
type Audience string

const (
	AudienceExecutive Audience = "executive"
	AudienceAnalyst   Audience = "analyst"
	AudienceGeneral   Audience = "general"
)

// Story groups a run's insights and their supporting chart references into
// an ordered narrative structure for presentation.
type Story struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Audience          Audience  `json:"audience"`
	KeyInsights       []Insight `json:"key_insights"`
	SupportingVisuals []string  `json:"supporting_visuals"`
	NarrativeOutline  []string  `json:"narrative_outline"`
	CreatedAt         time.Time `json:"created_at"`
}
