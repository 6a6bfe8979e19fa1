package engine

import (
	"context"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Query describes one point-in-time read of a log file.
type Query struct {
	Path  string
	Count int
	// Filter is a regular expression; nil means no filter. An empty pattern
	// is valid and matches every non-empty line.
	Filter *string
}

// QueryEngine turns the Scanner's raw lines into ordered Events.
// It holds no per-query state; one engine serves concurrent queries.
type QueryEngine struct {
	scanner *Scanner
	stats   Stats
}

// NewQueryEngine creates a QueryEngine reading through scanner.
func NewQueryEngine(scanner *Scanner) *QueryEngine {
	if scanner == nil {
		scanner = NewScanner(DefaultChunkSize)
	}
	return &QueryEngine{scanner: scanner}
}

// CompileFilter compiles a filter pattern. A nil pattern yields a nil regexp.
func CompileFilter(pattern *string) (*regexp.Regexp, error) {
	if pattern == nil {
		return nil, nil
	}
	re, err := regexp.Compile(*pattern)
	if err != nil {
		return nil, newError(KindInvalidArgument, "filter", "", errors.Wrapf(err, "invalid filter %q", *pattern))
	}
	return re, nil
}

// Execute returns at most q.Count events from q.Path, newest first.
//
// When every selected line carries a valid timestamp the result is sorted by
// timestamp descending, ties keeping file order. Otherwise file order is kept
// as is. Arguments are validated before any file access.
func (qe *QueryEngine) Execute(ctx context.Context, q Query) ([]Event, error) {
	events, stats, err := qe.execute(ctx, q)
	qe.stats.record(stats, len(events), err)
	return events, err
}

func (qe *QueryEngine) execute(ctx context.Context, q Query) ([]Event, ScanStats, error) {
	if q.Count < 0 {
		return nil, ScanStats{}, newError(KindInvalidArgument, "count", "", errors.Errorf("count must be non-negative, got %d", q.Count))
	}
	filter, err := CompileFilter(q.Filter)
	if err != nil {
		return nil, ScanStats{}, err
	}
	if q.Count == 0 {
		return []Event{}, ScanStats{}, nil
	}

	lines, stats, err := qe.scanner.Scan(ctx, q.Path, q.Count, filter)
	if err != nil {
		return nil, stats, err
	}

	events := lo.Map(lines, func(line string, _ int) Event {
		return NewEvent(line)
	})
	if lo.EveryBy(events, Event.HasTimestamp) {
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].msSinceEpoch > events[j].msSinceEpoch
		})
	}
	return events, stats, nil
}

// GetStats returns cumulative counters for all queries executed so far.
func (qe *QueryEngine) GetStats() SystemStats {
	return qe.stats.Snapshot()
}
