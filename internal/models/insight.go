package models

import (
	"time"

	"github.com/google/uuid"
)

// InsightType identifies the kind of finding an insight reports.
type InsightType string

const (
	InsightTypeTrend       InsightType = "trend"
	InsightTypeAnomaly     InsightType = "anomaly"
	InsightTypeCorrelation InsightType = "correlation"
	InsightTypeForecast    InsightType = "forecast"
)

// TrendDirection classifies the shape of a detected trend.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendCyclical   TrendDirection = "cyclical"
	TrendFlat       TrendDirection = "flat"
)

// Evidence is the type-specific statistical payload backing an insight.
// The set of implementations is closed; consumers switch on the concrete
// type instead of comparing strings.
type Evidence interface {
	insightEvidence()
}

// TrendEvidence backs a trend insight.
type TrendEvidence struct {
	Direction     TrendDirection `json:"direction"`
	PercentChange float64        `json:"percent_change"`
	Slope         float64        `json:"slope"`
	RSquared      float64        `json:"r_squared"`
	PeriodDays    int            `json:"period_days,omitempty"`
}

// AnomalyEvidence backs an anomaly insight covering one anomalous run.
type AnomalyEvidence struct {
	RunStart       time.Time `json:"run_start"`
	RunEnd         time.Time `json:"run_end"`
	PointCount     int       `json:"point_count"`
	PeakZScore     float64   `json:"peak_z_score"`
	PeakValue      float64   `json:"peak_value"`
	BaselineMean   float64   `json:"baseline_mean"`
	BaselineStdDev float64   `json:"baseline_std_dev"`
}

// CorrelationEvidence backs a correlation insight over a metric pair.
type CorrelationEvidence struct {
	Coefficient float64 `json:"coefficient"`
	LagDays     int     `json:"lag_days"`
	Overlap     int     `json:"overlap"`
	PValue      float64 `json:"p_value"`
}

// ForecastPoint is one projected future observation with its interval.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// ForecastEvidence backs a forecast insight.
type ForecastEvidence struct {
	HorizonDays int             `json:"horizon_days"`
	Method      string          `json:"method"` // "linear" or "seasonal"
	RSquared    float64         `json:"r_squared"`
	Points      []ForecastPoint `json:"points"`
}

func (TrendEvidence) insightEvidence()       {}
func (AnomalyEvidence) insightEvidence()     {}
func (CorrelationEvidence) insightEvidence() {}
func (ForecastEvidence) insightEvidence()    {}

// Insight is a single statistically meaningful finding. Insights are
// immutable once produced; the synthesizer only filters, ranks and wraps.
type Insight struct {
	ID                string      `json:"id"`
	Type              InsightType `json:"insight_type"`
	Title             string      `json:"title"`
	Metrics           []string    `json:"metrics"`
	SignificanceScore float64     `json:"significance_score"`
	Confidence        float64     `json:"confidence_level"`
	Evidence          Evidence    `json:"evidence"`
	Recommendations   []string    `json:"recommendations"`
	WindowStart       time.Time   `json:"window_start"`
	WindowEnd         time.Time   `json:"window_end"`
	CreatedAt         time.Time   `json:"created_at"`
}

// NewInsight builds an insight with a generated id and the confidence
// clamped into [0,1].
func NewInsight(insightType InsightType, title string, metrics []string, significance, confidence float64, evidence Evidence) *Insight {
	return &Insight{
		ID:                uuid.New().String(),
		Type:              insightType,
		Title:             title,
		Metrics:           metrics,
		SignificanceScore: significance,
		Confidence:        ClampConfidence(confidence),
		Evidence:          evidence,
		CreatedAt:         time.Now().UTC(),
	}
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// TypePrecedence orders insight types for deterministic tie-breaking:
// anomaly, trend, correlation, forecast.
func TypePrecedence(t InsightType) int {
	switch t {
	case InsightTypeAnomaly:
		return 0
	case InsightTypeTrend:
		return 1
	case InsightTypeCorrelation:
		return 2
	case InsightTypeForecast:
		return 3
	default:
		return 4
	}
}
