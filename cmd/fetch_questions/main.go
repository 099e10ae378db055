package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/chris8332558/chris-metac-bot-template/internal/config"
	"github.com/chris8332558/chris-metac-bot-template/internal/ingest"
	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
)

// fetch_questions materializes each configured tournament's resolved
// questions as a JSON file under the data directory. Files that already
// exist are left alone, so the command can be re-run to fill gaps.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel)

	client := metaculus.NewClient(metaculus.Config{
		BaseURL:        cfg.APIBaseURL,
		Token:          cfg.MetaculusToken,
		RequestsPerSec: cfg.RequestsPerSecond,
	})
	svc := ingest.NewService(client, ingest.Config{
		DataDir:  cfg.DataDir,
		MaxPages: cfg.MaxPages,
	})

	var written, skipped, failed int
	for _, ref := range cfg.Tournaments {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted, stopping")
			break
		}
		_, wasSkipped, err := svc.Materialize(ctx, ref)
		switch {
		case err != nil:
			failed++
			log.Error().Err(err).Str("tournament", ref.ID).Msg("materialize failed")
		case wasSkipped:
			skipped++
		default:
			written++
		}
	}

	log.Info().
		Int("written", written).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("fetch finished")
	if failed > 0 {
		os.Exit(1)
	}
}
