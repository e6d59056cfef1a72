package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventIndexBuild EventType = "index_build"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// IndexEvent is emitted once per completed build.
type IndexEvent struct {
	Type        EventType `json:"type"`
	Source      string    `json:"source"`
	Documents   int       `json:"documents"`
	Skipped     int       `json:"skipped"`
	Terms       int       `json:"terms"`
	Fingerprint string    `json:"fingerprint"`
	DurationMs  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSearchEvent classifies the event from its outcome.
func NewSearchEvent(query string, terms []string, totalHits, returned int, latency time.Duration, cacheHit bool) SearchEvent {
	t := EventSearch
	switch {
	case totalHits == 0:
		t = EventZeroResult
	case cacheHit:
		t = EventCacheHit
	}
	return SearchEvent{
		Type:      t,
		Query:     query,
		Terms:     terms,
		TotalHits: totalHits,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	}
}
