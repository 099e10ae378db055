package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chris8332558/chris-metac-bot-template/internal/extract"
	"github.com/chris8332558/chris-metac-bot-template/internal/forecast"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "forecasts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateTables(context.Background()); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	return st
}

func fptr(v float64) *float64 { return &v }

func TestSaveAndHasForecast(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := forecast.Record{
		RunID:        "run-1",
		QuestionID:   42,
		PostID:       99,
		Title:        "Will it rain?",
		QuestionType: "binary",
		Outcome:      forecast.Outcome{Probability: fptr(0.67)},
		Reasoning:    "status quo",
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := st.SaveForecast(ctx, rec); err != nil {
		t.Fatalf("SaveForecast: %v", err)
	}

	has, err := st.HasForecast(ctx, 42)
	if err != nil {
		t.Fatalf("HasForecast: %v", err)
	}
	if !has {
		t.Error("question 42 should have a forecast")
	}
	has, err = st.HasForecast(ctx, 43)
	if err != nil {
		t.Fatalf("HasForecast: %v", err)
	}
	if has {
		t.Error("question 43 should not have a forecast")
	}
}

func TestSaveForecastUpsertsByRunID(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := forecast.Record{
		RunID:        "run-1",
		QuestionID:   42,
		QuestionType: "binary",
		Outcome:      forecast.Outcome{Probability: fptr(0.5)},
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := st.SaveForecast(ctx, rec); err != nil {
		t.Fatalf("SaveForecast: %v", err)
	}
	rec.Submitted = true
	rec.Outcome.Probability = fptr(0.55)
	if err := st.SaveForecast(ctx, rec); err != nil {
		t.Fatalf("SaveForecast update: %v", err)
	}

	recs, err := st.RecentForecasts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentForecasts: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if !recs[0].Submitted {
		t.Error("updated record should be marked submitted")
	}
	if recs[0].Outcome.Probability == nil || *recs[0].Outcome.Probability != 0.55 {
		t.Errorf("probability = %v, want 0.55", recs[0].Outcome.Probability)
	}
}

func TestRecentForecastsRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	older := forecast.Record{
		RunID:        "run-old",
		QuestionID:   1,
		QuestionType: "numeric",
		Outcome: forecast.Outcome{
			Percentiles: []extract.Percentile{{Rank: 10, Value: 2}, {Rank: 90, Value: 45}},
		},
		ResearchDegraded: true,
		CreatedAt:        time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	newer := forecast.Record{
		RunID:        "run-new",
		QuestionID:   2,
		QuestionType: "multiple_choice",
		Outcome: forecast.Outcome{
			Options:  map[string]float64{"red": 0.25, "blue": 0.75},
			Rescaled: true,
		},
		Reasoning: "blue is ahead",
		CreatedAt: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	if err := st.SaveForecasts(ctx, older, newer); err != nil {
		t.Fatalf("SaveForecasts: %v", err)
	}

	recs, err := st.RecentForecasts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentForecasts: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].RunID != "run-new" || recs[1].RunID != "run-old" {
		t.Errorf("order = %s, %s; want newest first", recs[0].RunID, recs[1].RunID)
	}
	if recs[0].Outcome.Options["blue"] != 0.75 || !recs[0].Outcome.Rescaled {
		t.Errorf("options did not round trip: %+v", recs[0].Outcome)
	}
	if recs[0].Reasoning != "blue is ahead" {
		t.Errorf("reasoning = %q", recs[0].Reasoning)
	}
	if len(recs[1].Outcome.Percentiles) != 2 || recs[1].Outcome.Percentiles[1].Value != 45 {
		t.Errorf("percentiles did not round trip: %+v", recs[1].Outcome.Percentiles)
	}
	if !recs[1].ResearchDegraded {
		t.Error("degraded flag did not round trip")
	}
	if recs[1].Outcome.Probability != nil {
		t.Error("numeric record should have no probability")
	}
	if !recs[1].CreatedAt.Equal(older.CreatedAt) {
		t.Errorf("created_at = %v, want %v", recs[1].CreatedAt, older.CreatedAt)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "forecasts.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var st *Store
	if err := st.Close(); err != nil {
		t.Errorf("nil store Close: %v", err)
	}
}
