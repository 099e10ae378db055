package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultModel         = "anthropic/claude-sonnet-4.5"
	defaultResearchModel = "o4-mini-deep-research"
	defaultBaseURL       = "https://www.metaculus.com/api"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
	defaultTournament    = "fall-aib-2025"
)

// QuestionRef identifies a single question by question and post id.
type QuestionRef struct {
	QuestionID int64
	PostID     int64
}

// TournamentRef pairs a tournament identifier (numeric or slug) with the
// corpus file the ingestion run writes for it.
type TournamentRef struct {
	ID   string
	File string
}

// Config is built once at process start and handed to each component's
// constructor. Components never read the environment themselves.
type Config struct {
	MetaculusToken    string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	SubmitPredictions       bool
	UseExampleQuestions     bool
	SkipForecastedQuestions bool
	NumRunsPerQuestion      int
	ConcurrentRequestsLimit int

	DefaultModel             string
	DefaultTemperature       float64
	ResearchModel            string
	ResearchTemperature      float64
	ModelsWithoutTemperature []string

	APIBaseURL        string
	TournamentID      string
	RequestsPerSecond int
	MaxPages          int
	DataDir           string

	SQLitePath string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ResearchCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string

	ExampleQuestions []QuestionRef
	Tournaments      []TournamentRef
}

// DefaultTournaments lists the resolved-question tournaments the fetch
// command materializes, with their destination file names.
var DefaultTournaments = []TournamentRef{
	{ID: "32721", File: "quarterly_cup_q2-2025_metaculus_questions.json"},
	{ID: "32630", File: "quarterly_cup_q1-2025_metaculus_questions.json"},
	{ID: "3672", File: "quarterly_cup_q4-2024_metaculus_questions.json"},
	{ID: "3349", File: "quarterly_cup_q3-2024_metaculus_questions.json"},
	{ID: "quarterly-cup-2024q2", File: "quarterly_cup_q2-2024_metaculus_questions.json"},
	{ID: "quarterly-cup-2024q1", File: "quarterly_cup_q1-2024_metaculus_questions.json"},
	{ID: "quarterly-cup-2023q4", File: "quarterly_cup_q4-2023_metaculus_questions.json"},
	{ID: "quarterly-cup-2023q3", File: "quarterly_cup_q3-2023_metaculus_questions.json"},
	{ID: "2023-contest", File: "2023-contest_metaculus_questions.json"},
	{ID: "bridgewater", File: "bridgewater_binary_resolved_metaculus_questions.json"},
	{ID: "market-pulse-25q2", File: "market-pulse-25q2_binary_resolved_metaculus_questions.json"},
	{ID: "nuclear-risk-forecasting-tournament", File: "nuclear-risk-forecasting-tournament_metaculus_questions.json"},
	{ID: "global-pulse", File: "global_pulse_metaculus.json"},
	{ID: "flusight-challenge23-24", File: "flusight-challenge23-24_metaculus.json"},
}

// Load reads configuration from the environment, falling back to a .env file
// when present. Missing credentials are not an error here; calls that need
// them fail when made.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MetaculusToken:    os.Getenv("METACULUS_TOKEN"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", defaultOpenRouterURL),

		SubmitPredictions:       getEnvBool("SUBMIT_PREDICTIONS", false),
		UseExampleQuestions:     getEnvBool("USE_EXAMPLE_QUESTIONS", true),
		SkipForecastedQuestions: getEnvBool("SKIP_FORECASTED_QUESTIONS", false),
		NumRunsPerQuestion:      getEnvInt("NUM_RUNS_PER_QUESTION", 1),
		ConcurrentRequestsLimit: getEnvInt("CONCURRENT_REQUESTS_LIMIT", 5),

		DefaultModel:        getEnv("DEFAULT_MODEL", defaultModel),
		DefaultTemperature:  getEnvFloat("DEFAULT_TEMPERATURE", 0.3),
		ResearchModel:       getEnv("RESEARCH_MODEL", defaultResearchModel),
		ResearchTemperature: getEnvFloat("RESEARCH_TEMPERATURE", 0.7),

		APIBaseURL:        getEnv("METACULUS_API_BASE_URL", defaultBaseURL),
		TournamentID:      getEnv("TOURNAMENT_ID", defaultTournament),
		RequestsPerSecond: getEnvInt("METACULUS_REQUESTS_PER_SEC", 5),
		MaxPages:          getEnvInt("MAX_PAGES", 100),
		DataDir:           getEnv("DATA_DIR", "data"),

		SQLitePath: getEnv("SQLITE_PATH", "data/forecasts.db"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		ResearchCacheTTL: time.Duration(getEnvInt("RESEARCH_CACHE_TTL_H", 24)) * time.Hour,

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("FORECASTS_KAFKA_TOPIC", "forecasts.completed"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		Tournaments: DefaultTournaments,
	}

	cfg.ModelsWithoutTemperature = splitList(getEnv(
		"MODELS_WITHOUT_TEMPERATURE",
		defaultResearchModel+","+defaultModel,
	))

	refs, err := parseQuestionRefs(getEnv("EXAMPLE_QUESTIONS", "22427:22427"))
	if err != nil {
		return nil, err
	}
	cfg.ExampleQuestions = refs

	if cfg.NumRunsPerQuestion < 1 {
		cfg.NumRunsPerQuestion = 1
	}
	if cfg.ConcurrentRequestsLimit < 1 {
		cfg.ConcurrentRequestsLimit = 5
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 100
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return def
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseQuestionRefs parses "questionID:postID" pairs separated by commas.
// A bare id is used for both question and post.
func parseQuestionRefs(raw string) ([]QuestionRef, error) {
	var refs []QuestionRef
	for _, part := range splitList(raw) {
		qid, pid, found := strings.Cut(part, ":")
		q, err := strconv.ParseInt(strings.TrimSpace(qid), 10, 64)
		if err != nil {
			return nil, err
		}
		p := q
		if found {
			p, err = strconv.ParseInt(strings.TrimSpace(pid), 10, 64)
			if err != nil {
				return nil, err
			}
		}
		refs = append(refs, QuestionRef{QuestionID: q, PostID: p})
	}
	return refs, nil
}
