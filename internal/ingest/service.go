// Package ingest downloads resolved tournament questions and
// materializes them as local JSON files for offline calibration work.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/chris8332558/chris-metac-bot-template/internal/config"
	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
)

const pageSize = 100

// ErrPageLimit reports that a tournament listing kept returning pages
// past the configured ceiling, which usually means broken pagination
// parameters rather than a tournament of that size.
var ErrPageLimit = errors.New("ingest: page limit exceeded")

// QuestionSource is the slice of the platform client the service needs.
type QuestionSource interface {
	ListPosts(ctx context.Context, params metaculus.ListPostsParams) (*metaculus.PostsPage, error)
}

// Config holds ingest settings.
type Config struct {
	DataDir  string
	MaxPages int
}

// Service fetches resolved tournament questions and writes them to
// per-tournament JSON files under the data directory.
type Service struct {
	source   QuestionSource
	dataDir  string
	maxPages int
	log      zerolog.Logger
}

// NewService creates an ingest service.
func NewService(source QuestionSource, cfg Config) *Service {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 100
	}
	return &Service{
		source:   source,
		dataDir:  cfg.DataDir,
		maxPages: cfg.MaxPages,
		log:      logging.Component("ingest"),
	}
}

// FetchResolvedQuestions pages through the tournament's resolved posts
// until an empty page, flattens them into questions and drops annulled
// resolutions.
func (s *Service) FetchResolvedQuestions(ctx context.Context, tournamentID string) ([]metaculus.Question, error) {
	questions, err := s.fetchQuestions(ctx, tournamentID, "resolved")
	if err != nil {
		return nil, err
	}

	kept := questions[:0]
	for _, q := range questions {
		if q.Annulled() {
			continue
		}
		kept = append(kept, q)
	}
	if dropped := len(questions) - len(kept); dropped > 0 {
		s.log.Info().
			Str("tournament", tournamentID).
			Int("dropped", dropped).
			Msg("dropped annulled questions")
	}
	return kept, nil
}

// FetchOpenQuestions pages through the tournament's currently open
// posts, flattened into forecastable questions.
func (s *Service) FetchOpenQuestions(ctx context.Context, tournamentID string) ([]metaculus.Question, error) {
	return s.fetchQuestions(ctx, tournamentID, "open")
}

// fetchQuestions pages until an empty page. Pagination running past the
// page ceiling fails with ErrPageLimit instead of silently truncating.
func (s *Service) fetchQuestions(ctx context.Context, tournamentID, statuses string) ([]metaculus.Question, error) {
	var questions []metaculus.Question
	for page := 0; ; page++ {
		if page >= s.maxPages {
			return nil, fmt.Errorf("%w: tournament %s after %d pages", ErrPageLimit, tournamentID, s.maxPages)
		}
		listing, err := s.source.ListPosts(ctx, metaculus.ListPostsParams{
			Limit:              pageSize,
			Offset:             page * pageSize,
			OrderBy:            "-open_time",
			Tournaments:        []string{tournamentID},
			Statuses:           statuses,
			IncludeDescription: true,
		})
		if err != nil {
			return nil, fmt.Errorf("list posts for %s: %w", tournamentID, err)
		}
		if len(listing.Results) == 0 {
			break
		}
		for i := range listing.Results {
			post := &listing.Results[i]
			if post.Kind() == metaculus.PostKindUnknown {
				s.log.Warn().
					Int64("post_id", post.ID).
					Str("title", post.Title).
					Msg("skipping post with unrecognized shape")
				continue
			}
			questions = append(questions, post.Flatten()...)
		}
	}
	return questions, nil
}

// Materialize writes the tournament's resolved questions to its data
// file. An existing file is left untouched and skips the fetch
// entirely, so repeated runs cost nothing.
func (s *Service) Materialize(ctx context.Context, ref config.TournamentRef) (string, bool, error) {
	path := filepath.Join(s.dataDir, ref.File)
	if _, err := os.Stat(path); err == nil {
		s.log.Info().
			Str("tournament", ref.ID).
			Str("path", path).
			Msg("data file exists, skipping fetch")
		return path, true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, fmt.Errorf("stat %s: %w", path, err)
	}

	questions, err := s.FetchResolvedQuestions(ctx, ref.ID)
	if err != nil {
		return "", false, err
	}
	if err := writeQuestions(path, questions); err != nil {
		return "", false, err
	}
	s.log.Info().
		Str("tournament", ref.ID).
		Str("path", path).
		Int("questions", len(questions)).
		Msg("tournament data written")
	return path, false, nil
}

// writeQuestions stages the encode in a temp file so a failure never
// leaves a partial data file behind.
func writeQuestions(path string, questions []metaculus.Question) error {
	if questions == nil {
		questions = []metaculus.Question{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".questions-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		tmp.Close()
		return fmt.Errorf("encode questions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
