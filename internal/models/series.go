package models

import (
	"sort"
	"time"
)

// Sample is a single time-stamped observation of a metric.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series holds the ordered samples of one metric. Timestamps are strictly
// increasing after Normalize; irregular sampling intervals are legal.
type Series struct {
	MetricID string   `json:"metric_id"`
	Samples  []Sample `json:"samples"`
}

// Len returns the number of samples in the series.
func (s *Series) Len() int {
	return len(s.Samples)
}

// Normalize sorts samples by timestamp and collapses duplicate timestamps,
// keeping the last value seen for each instant.
func (s *Series) Normalize() {
	if len(s.Samples) < 2 {
		return
	}

	sort.SliceStable(s.Samples, func(i, j int) bool {
		return s.Samples[i].Timestamp.Before(s.Samples[j].Timestamp)
	})

	deduped := s.Samples[:1]
	for _, sample := range s.Samples[1:] {
		last := &deduped[len(deduped)-1]
		if sample.Timestamp.Equal(last.Timestamp) {
			last.Value = sample.Value
			continue
		}
		deduped = append(deduped, sample)
	}
	s.Samples = deduped
}

// Window returns a new series containing the samples in [start, end].
// The underlying samples are shared; callers must not mutate them.
func (s *Series) Window(start, end time.Time) *Series {
	lo := sort.Search(len(s.Samples), func(i int) bool {
		return !s.Samples[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(s.Samples), func(i int) bool {
		return s.Samples[i].Timestamp.After(end)
	})

	return &Series{MetricID: s.MetricID, Samples: s.Samples[lo:hi]}
}

// Values returns the sample values in timestamp order.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		values[i] = sample.Value
	}
	return values
}

// Span returns the timestamps of the first and last sample. The zero time is
// returned for both when the series is empty.
func (s *Series) Span() (time.Time, time.Time) {
	if len(s.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Samples[0].Timestamp, s.Samples[len(s.Samples)-1].Timestamp
}
