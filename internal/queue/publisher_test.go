package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/chris8332558/chris-metac-bot-template/internal/forecast"
)

func TestForecastMessage(t *testing.T) {
	p := 0.62
	rec := forecast.Record{
		RunID:        "abc-123",
		QuestionID:   42,
		PostID:       99,
		Title:        "Will it rain?",
		QuestionType: "binary",
		Outcome:      forecast.Outcome{Probability: &p},
		Submitted:    true,
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := forecastMessage(rec)
	if err != nil {
		t.Fatalf("forecastMessage: %v", err)
	}
	if got := string(msg.Key); got != "42-abc-123" {
		t.Errorf("key = %q, want %q", got, "42-abc-123")
	}

	var decoded forecast.Record
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.RunID != rec.RunID || decoded.QuestionID != rec.QuestionID {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Outcome.Probability == nil || *decoded.Outcome.Probability != 0.62 {
		t.Errorf("probability = %v, want 0.62", decoded.Outcome.Probability)
	}
	if !decoded.Submitted {
		t.Error("submitted flag lost in payload")
	}
}

func TestPublishForecastWithoutWriter(t *testing.T) {
	var nilPublisher *Publisher
	if err := nilPublisher.PublishForecast(context.Background(), forecast.Record{}); err != nil {
		t.Errorf("nil publisher: %v", err)
	}
	if err := nilPublisher.Close(); err != nil {
		t.Errorf("nil publisher close: %v", err)
	}

	p := NewPublisher(nil)
	if err := p.PublishForecast(context.Background(), forecast.Record{RunID: "x"}); err != nil {
		t.Errorf("publisher without writer: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("close without writer: %v", err)
	}
}
