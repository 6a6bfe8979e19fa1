package engine

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// HistogramPoint is one time bucket and its event count.
type HistogramPoint struct {
	Time  int64 `json:"time"` // bucket start, ms since epoch
	Count int   `json:"count"`
}

// Histogram counts events per time bucket.
type Histogram struct {
	Points  []HistogramPoint `json:"points"`
	Untimed int              `json:"untimed"` // events without a valid timestamp
}

// ComputeHistogram aggregates event counts over interval-sized time buckets.
func ComputeHistogram(events []Event, interval time.Duration) (Histogram, error) {
	width := interval.Milliseconds()
	if width <= 0 {
		return Histogram{}, newError(KindInvalidArgument, "interval", "", errors.Errorf("interval must be at least 1ms, got %v", interval))
	}

	buckets := make(map[int64]int)
	var h Histogram
	for _, e := range events {
		if !e.HasTimestamp() {
			h.Untimed++
			continue
		}
		ts := e.TimestampMillis()
		bucket := ts / width * width
		if ts < 0 && ts%width != 0 {
			bucket -= width
		}
		buckets[bucket]++
	}

	h.Points = make([]HistogramPoint, 0, len(buckets))
	for t, c := range buckets {
		h.Points = append(h.Points, HistogramPoint{Time: t, Count: c})
	}
	sort.Slice(h.Points, func(i, j int) bool {
		return h.Points[i].Time < h.Points[j].Time
	})
	return h, nil
}
