package engine

import "sync/atomic"

// Stats holds cumulative query counters. It is safe for concurrent use and
// never influences query results.
type Stats struct {
	queries  atomic.Int64
	events   atomic.Int64
	chunks   atomic.Int64
	bytes    atomic.Int64
	failures [3]atomic.Int64 // indexed by Kind
}

// SystemStats is the API view of Stats.
type SystemStats struct {
	Queries   int64            `json:"queries"`    // total queries executed
	Events    int64            `json:"events"`     // events returned
	Chunks    int64            `json:"chunks"`     // chunk reads
	BytesRead int64            `json:"bytes_read"` // bytes read from log files
	Failures  map[string]int64 `json:"failures"`   // e.g. "not_found": 3
}

func (s *Stats) record(stats ScanStats, returned int, err error) {
	s.queries.Add(1)
	s.chunks.Add(int64(stats.Chunks))
	s.bytes.Add(stats.Bytes)
	if err != nil {
		s.failures[KindOf(err)].Add(1)
		return
	}
	s.events.Add(int64(returned))
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() SystemStats {
	out := SystemStats{
		Queries:   s.queries.Load(),
		Events:    s.events.Load(),
		Chunks:    s.chunks.Load(),
		BytesRead: s.bytes.Load(),
		Failures:  make(map[string]int64, len(s.failures)),
	}
	for k := range s.failures {
		out.Failures[Kind(k).String()] = s.failures[k].Load()
	}
	return out
}
