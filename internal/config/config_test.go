package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SubmitPredictions {
		t.Error("SubmitPredictions should default to false")
	}
	if !cfg.UseExampleQuestions {
		t.Error("UseExampleQuestions should default to true")
	}
	if cfg.NumRunsPerQuestion != 1 {
		t.Errorf("NumRunsPerQuestion = %d, want 1", cfg.NumRunsPerQuestion)
	}
	if cfg.ConcurrentRequestsLimit != 5 {
		t.Errorf("ConcurrentRequestsLimit = %d, want 5", cfg.ConcurrentRequestsLimit)
	}
	if cfg.DefaultModel != "anthropic/claude-sonnet-4.5" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.DefaultTemperature != 0.3 {
		t.Errorf("DefaultTemperature = %v, want 0.3", cfg.DefaultTemperature)
	}
	if cfg.TournamentID != "fall-aib-2025" {
		t.Errorf("TournamentID = %q", cfg.TournamentID)
	}
	if len(cfg.ModelsWithoutTemperature) != 2 {
		t.Errorf("ModelsWithoutTemperature = %v, want two entries", cfg.ModelsWithoutTemperature)
	}
	if len(cfg.ExampleQuestions) != 1 || cfg.ExampleQuestions[0].QuestionID != 22427 {
		t.Errorf("ExampleQuestions = %v", cfg.ExampleQuestions)
	}
	if len(cfg.Tournaments) == 0 {
		t.Error("Tournaments should carry the built-in table")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUBMIT_PREDICTIONS", "true")
	t.Setenv("NUM_RUNS_PER_QUESTION", "3")
	t.Setenv("DEFAULT_TEMPERATURE", "0.9")
	t.Setenv("KAFKA_BROKERS", "localhost:9092, broker2:9092")
	t.Setenv("EXAMPLE_QUESTIONS", "100:200,300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SubmitPredictions {
		t.Error("SubmitPredictions override not applied")
	}
	if cfg.NumRunsPerQuestion != 3 {
		t.Errorf("NumRunsPerQuestion = %d, want 3", cfg.NumRunsPerQuestion)
	}
	if cfg.DefaultTemperature != 0.9 {
		t.Errorf("DefaultTemperature = %v, want 0.9", cfg.DefaultTemperature)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	want := []QuestionRef{{QuestionID: 100, PostID: 200}, {QuestionID: 300, PostID: 300}}
	if len(cfg.ExampleQuestions) != 2 || cfg.ExampleQuestions[0] != want[0] || cfg.ExampleQuestions[1] != want[1] {
		t.Errorf("ExampleQuestions = %v, want %v", cfg.ExampleQuestions, want)
	}
}

func TestLoadRejectsBadExampleQuestions(t *testing.T) {
	t.Setenv("EXAMPLE_QUESTIONS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed EXAMPLE_QUESTIONS")
	}
}

func TestLoadClampsInvalidCounts(t *testing.T) {
	t.Setenv("NUM_RUNS_PER_QUESTION", "0")
	t.Setenv("CONCURRENT_REQUESTS_LIMIT", "-2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumRunsPerQuestion != 1 {
		t.Errorf("NumRunsPerQuestion = %d, want clamp to 1", cfg.NumRunsPerQuestion)
	}
	if cfg.ConcurrentRequestsLimit != 5 {
		t.Errorf("ConcurrentRequestsLimit = %d, want fallback 5", cfg.ConcurrentRequestsLimit)
	}
}
