package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chris8332558/chris-metac-bot-template/internal/cache"
	"github.com/chris8332558/chris-metac-bot-template/internal/config"
	"github.com/chris8332558/chris-metac-bot-template/internal/forecast"
	"github.com/chris8332558/chris-metac-bot-template/internal/ingest"
	kafkautil "github.com/chris8332558/chris-metac-bot-template/internal/kafka"
	"github.com/chris8332558/chris-metac-bot-template/internal/llm"
	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
	"github.com/chris8332558/chris-metac-bot-template/internal/queue"
	"github.com/chris8332558/chris-metac-bot-template/internal/research"
	sqlstore "github.com/chris8332558/chris-metac-bot-template/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel)

	store, err := sqlstore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open sqlite")
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		log.Fatal().Err(err).Msg("create tables")
	}

	llmClient := llm.New(llm.Config{
		APIKey:              cfg.OpenRouterAPIKey,
		BaseURL:             cfg.OpenRouterBaseURL,
		DefaultModel:        cfg.DefaultModel,
		DefaultTemperature:  cfg.DefaultTemperature,
		ConcurrentLimit:     int64(cfg.ConcurrentRequestsLimit),
		TemperatureExcluded: cfg.ModelsWithoutTemperature,
	})

	metacClient := metaculus.NewClient(metaculus.Config{
		BaseURL:        cfg.APIBaseURL,
		Token:          cfg.MetaculusToken,
		RequestsPerSec: cfg.RequestsPerSecond,
	})

	var researchCache cache.ResearchCache
	if cfg.RedisAddr != "" {
		researchCache, err = cache.NewRedisResearchCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ResearchCacheTTL)
		if err != nil {
			log.Warn().Err(err).Msg("research cache disabled")
		} else {
			defer researchCache.Close()
		}
	}

	researcher := research.New(llmClient, researchCache, research.Config{
		Model:       cfg.ResearchModel,
		Temperature: cfg.ResearchTemperature,
	})

	publisher := setupPublisher(ctx, cfg)
	defer publisher.Close()

	forecaster := forecast.New(forecast.Deps{
		Caller:     llmClient,
		Researcher: researcher,
		History:    store,
		Publisher:  publisher,
		Submitter:  metacClient,
	}, forecast.Config{
		NumRuns:        cfg.NumRunsPerQuestion,
		SkipForecasted: cfg.SkipForecastedQuestions,
		Submit:         cfg.SubmitPredictions,
	})

	questions, err := selectQuestions(ctx, cfg, metacClient)
	if err != nil {
		log.Fatal().Err(err).Msg("select questions")
	}
	if len(questions) == 0 {
		log.Info().Str("tournament", cfg.TournamentID).Msg("no questions to forecast")
		return
	}
	log.Info().
		Int("questions", len(questions)).
		Bool("submit", cfg.SubmitPredictions).
		Int("runs_per_question", cfg.NumRunsPerQuestion).
		Msg("starting forecast run")

	records, runErr := forecaster.Run(ctx, questions)

	completed, submitted := 0, 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		completed++
		if rec.Submitted {
			submitted++
		}
	}
	log.Info().
		Int("questions", len(questions)).
		Int("completed", completed).
		Int("submitted", submitted).
		Msg("forecast run finished")

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("run had failures")
	}
}

// selectQuestions picks what to forecast: the configured example posts,
// or every open question in the configured tournament.
func selectQuestions(ctx context.Context, cfg *config.Config, client *metaculus.Client) ([]metaculus.Question, error) {
	if cfg.UseExampleQuestions {
		questions := make([]metaculus.Question, 0, len(cfg.ExampleQuestions))
		for _, ref := range cfg.ExampleQuestions {
			post, err := client.GetPost(ctx, ref.PostID)
			if err != nil {
				return nil, fmt.Errorf("get example post %d: %w", ref.PostID, err)
			}
			qs := post.Flatten()
			if len(qs) == 0 {
				log.Warn().Int64("post_id", ref.PostID).Msg("example post has no forecastable question")
				continue
			}
			questions = append(questions, qs...)
		}
		return questions, nil
	}

	svc := ingest.NewService(client, ingest.Config{DataDir: cfg.DataDir, MaxPages: cfg.MaxPages})
	return svc.FetchOpenQuestions(ctx, cfg.TournamentID)
}

// setupPublisher connects the forecast topic when brokers are
// configured. An unreachable broker disables publishing instead of
// failing the run.
func setupPublisher(ctx context.Context, cfg *config.Config) *queue.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	if err := kafkautil.WaitForBroker(waitCtx, cfg.KafkaBrokers); err != nil {
		log.Warn().Err(err).Msg("kafka unavailable, publishing disabled")
		return nil
	}
	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	defer cancelEnsure()
	if err := kafkautil.EnsureTopic(ensureCtx, cfg.KafkaBrokers, cfg.KafkaTopic); err != nil {
		log.Warn().Err(err).Msg("ensure topic failed")
	}
	return queue.NewPublisher(kafkautil.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
}
