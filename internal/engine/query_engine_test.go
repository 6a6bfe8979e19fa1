package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accessLogLayout = "02/Jan/2006:15:04:05 -0700"

func strPtr(s string) *string { return &s }

func raws(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Raw
	}
	return out
}

func TestExecute_ZeroCountSkipsScanner(t *testing.T) {
	s, c := newCountingScanner(DefaultChunkSize)
	qe := NewQueryEngine(s)

	events, err := qe.Execute(context.Background(), Query{Path: writeLog(t, "a\nb\n"), Count: 0})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, c.opens.Load())
	assert.Zero(t, c.reads.Load())
}

func TestExecute_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"negative count", Query{Count: -5}},
		{"invalid filter", Query{Count: 10, Filter: strPtr("([a-z")}},
		// Filter compiles before the zero-count shortcut.
		{"invalid filter with zero count", Query{Count: 0, Filter: strPtr("*")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newCountingScanner(DefaultChunkSize)
			qe := NewQueryEngine(s)

			tt.q.Path = writeLog(t, "GET /\n")
			events, err := qe.Execute(context.Background(), tt.q)
			require.Error(t, err)
			assert.Nil(t, events)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
			assert.Zero(t, c.opens.Load())
			assert.Zero(t, c.reads.Load())
		})
	}
}

func TestExecute_NotFound(t *testing.T) {
	qe := NewQueryEngine(nil)

	events, err := qe.Execute(context.Background(), Query{Path: filepath.Join(t.TempDir(), "missing.log"), Count: 10})
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestExecute_SortsWhenAllTimestamped(t *testing.T) {
	// File order is deliberately not chronological.
	content := strings.Join([]string{
		`a [17/May/2015:10:05:03 +0000] first`,
		`b [17/May/2015:10:05:01 +0000] second`,
		`c [17/May/2015:10:05:05 +0000] third`,
		`d [17/May/2015:10:05:01 +0000] fourth`,
	}, "\n") + "\n"
	qe := NewQueryEngine(nil)

	events, err := qe.Execute(context.Background(), Query{Path: writeLog(t, content), Count: 10})
	require.NoError(t, err)
	require.Len(t, events, 4)

	// Ties keep newest-first file order: d before b.
	assert.Equal(t, []string{
		`c [17/May/2015:10:05:05 +0000] third`,
		`a [17/May/2015:10:05:03 +0000] first`,
		`d [17/May/2015:10:05:01 +0000] fourth`,
		`b [17/May/2015:10:05:01 +0000] second`,
	}, raws(events))
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i-1].TimestampMillis(), events[i].TimestampMillis())
	}
}

func TestExecute_MixedKeepsFileOrder(t *testing.T) {
	content := strings.Join([]string{
		`[17/May/2015:10:05:03 +0000] timed one`,
		`untimed line`,
		`[17/May/2015:10:05:09 +0000] timed two`,
		`[17/May/2015:10:05:01 +0000] timed three`,
	}, "\n")
	qe := NewQueryEngine(nil)

	events, err := qe.Execute(context.Background(), Query{Path: writeLog(t, content), Count: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`[17/May/2015:10:05:01 +0000] timed three`,
		`[17/May/2015:10:05:09 +0000] timed two`,
		`untimed line`,
		`[17/May/2015:10:05:03 +0000] timed one`,
	}, raws(events))

	// Only the selected result decides: the two newest lines are both timed.
	events, err = qe.Execute(context.Background(), Query{Path: writeLog(t, content), Count: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`[17/May/2015:10:05:09 +0000] timed two`,
		`[17/May/2015:10:05:01 +0000] timed three`,
	}, raws(events))
}

func TestExecute_TenThousandLines(t *testing.T) {
	start := time.Date(2015, time.May, 17, 10, 5, 0, 0, time.UTC)
	end := time.Date(2015, time.May, 20, 21, 5, 59, 0, time.UTC)
	span := int64(end.Sub(start) / time.Second)

	const n = 10000
	var b strings.Builder
	for i := int64(0); i < n; i++ {
		ts := start.Add(time.Duration(i*span/(n-1)) * time.Second)
		fmt.Fprintf(&b, "83.149.9.216 - - [%s] \"GET /item/%d HTTP/1.1\" 200 %d\n", ts.Format(accessLogLayout), i, i*7)
	}
	path := writeLog(t, b.String())

	events, err := NewQueryEngine(nil).Execute(context.Background(), Query{Path: path, Count: n})
	require.NoError(t, err)
	require.Len(t, events, n)
	assert.Contains(t, events[0].Raw, "[20/May/2015:21:05:59 +0000]")
	assert.Contains(t, events[n-1].Raw, "[17/May/2015:10:05:00 +0000]")
}

func TestExecute_CountAndFilter(t *testing.T) {
	content := strings.Join([]string{
		`10.0.0.1 - - [17/May/2015:10:05:00 +0000] "GET /index.html HTTP/1.1" 200 512`,
		`10.0.0.2 - - [17/May/2015:10:05:01 +0000] "POST /login HTTP/1.1" 302 0`,
		`10.0.0.3 - - [17/May/2015:10:05:02 +0000] "GET /style.css HTTP/1.1" 200 128`,
		`10.0.0.4 - - [17/May/2015:10:05:03 +0000] "DELETE /item/4 HTTP/1.1" 204 0`,
		`10.0.0.5 - - [17/May/2015:10:05:04 +0000] "PUT /item/5 HTTP/1.1" 201 64`,
	}, "\n") + "\n"
	path := writeLog(t, content)
	qe := NewQueryEngine(nil)

	events, err := qe.Execute(context.Background(), Query{Path: path, Count: 1, Filter: strPtr("GET")})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Raw, `"GET`)
	assert.Contains(t, events[0].Raw, "/style.css")

	tests := []struct {
		filter *string
		count  int
		want   int
	}{
		{nil, 100, 5},
		{strPtr(""), 100, 5},
		{strPtr("GET"), 100, 2},
		{strPtr("item/\\d"), 1, 1},
		{strPtr("PATCH"), 100, 0},
		{nil, 3, 3},
	}
	for _, tt := range tests {
		events, err := qe.Execute(context.Background(), Query{Path: path, Count: tt.count, Filter: tt.filter})
		require.NoError(t, err)
		assert.Len(t, events, tt.want)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	path := writeLog(t, "x\n[17/May/2015:10:05:00 +0000] y\nz\n")
	qe := NewQueryEngine(NewScanner(4))

	first, err := qe.Execute(context.Background(), Query{Path: path, Count: 10})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := qe.Execute(context.Background(), Query{Path: path, Count: 10})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExecute_Concurrent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := writeLog(t, b.String())
	qe := NewQueryEngine(NewScanner(128))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := qe.Execute(context.Background(), Query{Path: path, Count: 50})
			assert.NoError(t, err)
			if assert.Len(t, events, 50) {
				assert.Equal(t, "line 499", events[0].Raw)
				assert.Equal(t, "line 450", events[49].Raw)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 8, qe.GetStats().Queries)
	assert.EqualValues(t, 400, qe.GetStats().Events)
}

func TestGetStats(t *testing.T) {
	qe := NewQueryEngine(nil)
	path := writeLog(t, "a\nb\nc\n")

	_, err := qe.Execute(context.Background(), Query{Path: path, Count: 2})
	require.NoError(t, err)
	_, err = qe.Execute(context.Background(), Query{Path: filepath.Join(t.TempDir(), "gone"), Count: 2})
	require.Error(t, err)
	_, err = qe.Execute(context.Background(), Query{Path: path, Count: -1})
	require.Error(t, err)

	stats := qe.GetStats()
	assert.EqualValues(t, 3, stats.Queries)
	assert.EqualValues(t, 2, stats.Events)
	assert.EqualValues(t, 1, stats.Chunks)
	assert.EqualValues(t, 6, stats.BytesRead)
	assert.Equal(t, map[string]int64{"io": 0, "not_found": 1, "invalid_argument": 1}, stats.Failures)
}
