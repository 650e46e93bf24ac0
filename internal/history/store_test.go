package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/apicontract/internal/result"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func run(id string, started time.Time, outcomes map[string]result.Outcome) Run {
	r := Run{ID: id, StartedAt: started, BaseURL: "http://example.com"}
	for _, name := range []string{"health", "transfer", "balance"} {
		outcome, ok := outcomes[name]
		if !ok {
			continue
		}
		c := CaseRecord{Name: name, Method: "GET", Path: "/" + name, Outcome: outcome}
		if outcome == result.Failed {
			c.Kind = result.KindAssertionFailure
			c.Detail = "status: expected 200, got 500"
			r.Failed++
		} else {
			r.Passed++
		}
		r.Total++
		r.Cases = append(r.Cases, c)
	}
	return r
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, run("r1", base, map[string]result.Outcome{"health": result.Passed})))
	require.NoError(t, s.Record(ctx, run("r2", base.Add(time.Hour), map[string]result.Outcome{"health": result.Failed, "transfer": result.Passed})))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, base.Add(time.Hour), runs[0].StartedAt)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, "http://example.com", runs[0].BaseURL)

	runs, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	cases, err := s.Cases(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "health", cases[0].Name)
	assert.Equal(t, result.Failed, cases[0].Outcome)
	assert.Equal(t, result.KindAssertionFailure, cases[0].Kind)
	assert.Equal(t, "status: expected 200, got 500", cases[0].Detail)
}

func TestRecordRejectsDuplicateAndEmptyID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.Record(ctx, Run{}))
	require.NoError(t, s.Record(ctx, run("r1", time.Now(), nil)))
	assert.Error(t, s.Record(ctx, run("r1", time.Now(), nil)))
}

func TestFlaky(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Oldest run is the only failure of "balance"; it falls outside a window of 3.
	history := []map[string]result.Outcome{
		{"health": result.Passed, "transfer": result.Passed, "balance": result.Failed},
		{"health": result.Passed, "transfer": result.Failed, "balance": result.Passed},
		{"health": result.Passed, "transfer": result.Passed, "balance": result.Passed},
		{"health": result.Passed, "transfer": result.Failed, "balance": result.Passed},
	}
	for i, outcomes := range history {
		id := string(rune('a' + i))
		require.NoError(t, s.Record(ctx, run(id, base.Add(time.Duration(i)*time.Minute), outcomes)))
	}

	flaky, err := s.Flaky(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []FlakyCase{{Name: "transfer", Passed: 1, Failed: 2}}, flaky)

	flaky, err = s.Flaky(ctx, 4)
	require.NoError(t, err)
	require.Len(t, flaky, 2)
	assert.Equal(t, "balance", flaky[0].Name)
	assert.Equal(t, "transfer", flaky[1].Name)
}

func TestFromSummary(t *testing.T) {
	results := []result.TestResult{
		{Case: "health", Method: "GET", Path: "/health", Outcome: result.Passed, Status: 200},
		{Case: "bad", Method: "GET", Path: "/accounts/{id}", Outcome: result.SetupError, SetupIssue: "missing path parameter"},
	}
	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	summary := result.Summarize("01RUN", "http://example.com", started, time.Second, results, 2)

	r := FromSummary(summary)
	assert.Equal(t, "01RUN", r.ID)
	assert.Equal(t, 2, r.Total)
	assert.Equal(t, 1, r.SetupErrors)
	assert.Equal(t, 2, r.Skipped)
	require.Len(t, r.Cases, 2)
	assert.Equal(t, "setup error: missing path parameter", r.Cases[1].Detail)
	assert.Equal(t, 200, r.Cases[0].Status)
}
