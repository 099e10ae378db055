package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chris8332558/chris-metac-bot-template/internal/extract"
	"github.com/chris8332558/chris-metac-bot-template/internal/llm"
	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
	"github.com/chris8332558/chris-metac-bot-template/internal/research"
)

// Caller is the slice of the model client the forecaster needs.
type Caller interface {
	Call(ctx context.Context, prompt string, opts ...llm.CallOption) (string, error)
}

// Researcher produces best-effort research context for a question.
type Researcher interface {
	Conduct(ctx context.Context, question string, details *research.Details) research.Result
}

// HistoryStore records completed forecasts and answers whether a
// question was already forecast.
type HistoryStore interface {
	SaveForecast(ctx context.Context, rec Record) error
	HasForecast(ctx context.Context, questionID int64) (bool, error)
}

// Publisher emits completed forecast records to downstream consumers.
type Publisher interface {
	PublishForecast(ctx context.Context, rec Record) error
}

// Submitter sends forecasts and reasoning comments to the platform.
type Submitter interface {
	SubmitForecast(ctx context.Context, payloads ...metaculus.ForecastPayload) error
	PostComment(ctx context.Context, postID int64, text string) error
}

// Deps bundles the forecaster's collaborators. History, Publisher and
// Submitter are optional; nil disables the corresponding side effect.
type Deps struct {
	Caller     Caller
	Researcher Researcher
	History    HistoryStore
	Publisher  Publisher
	Submitter  Submitter
}

// Config holds forecaster settings.
type Config struct {
	NumRuns        int
	SkipForecasted bool
	Submit         bool
}

// Forecaster runs the research, prompt, and extraction pipeline for
// questions and applies the side effects of a completed forecast.
type Forecaster struct {
	caller     Caller
	researcher Researcher
	history    HistoryStore
	publisher  Publisher
	submitter  Submitter
	cfg        Config
	log        zerolog.Logger
}

// New creates a forecaster.
func New(deps Deps, cfg Config) *Forecaster {
	if cfg.NumRuns < 1 {
		cfg.NumRuns = 1
	}
	return &Forecaster{
		caller:     deps.Caller,
		researcher: deps.Researcher,
		history:    deps.History,
		publisher:  deps.Publisher,
		submitter:  deps.Submitter,
		cfg:        cfg,
		log:        logging.Component("forecast"),
	}
}

// Run forecasts each question in its own goroutine and returns records
// in input order; skipped questions leave a nil record. The model
// client's concurrency ceiling bounds the actual API fan-out. Failures
// are collected per question rather than aborting the batch.
func (f *Forecaster) Run(ctx context.Context, questions []metaculus.Question) ([]*Record, error) {
	records := make([]*Record, len(questions))
	errs := make([]error, len(questions))

	var wg sync.WaitGroup
	for i := range questions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := f.ForecastQuestion(ctx, &questions[i])
			records[i] = rec
			if err != nil {
				errs[i] = fmt.Errorf("question %d: %w", questions[i].ID, err)
			}
		}(i)
	}
	wg.Wait()
	return records, errors.Join(errs...)
}

// ForecastQuestion runs the full pipeline for one question: research,
// one model run per configured repeat, extraction, aggregation, then
// side effects. A nil record with nil error means the question was
// skipped. Extraction and model failures propagate; a forecast is never
// defaulted to a neutral value.
func (f *Forecaster) ForecastQuestion(ctx context.Context, q *metaculus.Question) (*Record, error) {
	if f.cfg.SkipForecasted && f.history != nil {
		done, err := f.history.HasForecast(ctx, q.ID)
		if err != nil {
			f.log.Warn().Err(err).Int64("question_id", q.ID).Msg("history lookup failed")
		} else if done {
			f.log.Info().Int64("question_id", q.ID).Str("title", q.Title).Msg("already forecasted, skipping")
			return nil, nil
		}
	}

	f.log.Info().
		Int64("question_id", q.ID).
		Str("type", string(q.Type)).
		Str("title", q.Title).
		Msg("forecasting question")

	res := f.research(ctx, q)
	if res.Degraded() {
		f.log.Warn().Err(res.Err).Int64("question_id", q.ID).Msg("continuing with degraded research")
	}

	outcomes := make([]Outcome, 0, f.cfg.NumRuns)
	var reasoning string
	for i := 0; i < f.cfg.NumRuns; i++ {
		outcome, text, err := f.singleRun(ctx, q, res.Context())
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
		reasoning = text
	}

	final, err := Aggregate(outcomes)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		RunID:            uuid.NewString(),
		QuestionID:       q.ID,
		PostID:           q.PostID,
		Title:            q.Title,
		QuestionType:     string(q.Type),
		Outcome:          final,
		ResearchDegraded: res.Degraded(),
		Reasoning:        reasoning,
		CreatedAt:        time.Now().UTC(),
	}

	var submitErr error
	if f.cfg.Submit && f.submitter != nil {
		if err := f.submit(ctx, q, rec); err != nil {
			submitErr = fmt.Errorf("submit: %w", err)
			f.log.Error().Err(err).Int64("question_id", q.ID).Msg("submission failed")
		} else {
			rec.Submitted = true
		}
	}

	// Store and publish failures are logged, not fatal: the forecast
	// itself succeeded.
	if f.history != nil {
		if err := f.history.SaveForecast(ctx, *rec); err != nil {
			f.log.Error().Err(err).Int64("question_id", q.ID).Msg("saving forecast failed")
		}
	}
	if f.publisher != nil {
		if err := f.publisher.PublishForecast(ctx, *rec); err != nil {
			f.log.Error().Err(err).Int64("question_id", q.ID).Msg("publishing forecast failed")
		}
	}

	f.logOutcome(q, rec)
	return rec, submitErr
}

func (f *Forecaster) research(ctx context.Context, q *metaculus.Question) research.Result {
	if f.researcher == nil {
		return research.Result{}
	}
	return f.researcher.Conduct(ctx, q.Title, &research.Details{
		ResolutionCriteria: q.ResolutionCriteria,
		FinePrint:          q.FinePrint,
	})
}

func (f *Forecaster) singleRun(ctx context.Context, q *metaculus.Question, researchText string) (Outcome, string, error) {
	prompt, err := promptFor(q, researchText)
	if err != nil {
		return Outcome{}, "", err
	}
	text, err := f.caller.Call(ctx, prompt)
	if err != nil {
		return Outcome{}, "", err
	}
	outcome, err := extractOutcome(q, text)
	if err != nil {
		return Outcome{}, "", err
	}
	return outcome, text, nil
}

// extractOutcome parses the model's answer into the single shape the
// question type requires.
func extractOutcome(q *metaculus.Question, text string) (Outcome, error) {
	switch q.Type {
	case metaculus.TypeBinary:
		p, err := extract.Probability(text)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Probability: &p}, nil
	case metaculus.TypeMultipleChoice:
		probs, rescaled, err := extract.OptionProbabilities(text, q.Options)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Options: probs, Rescaled: rescaled}, nil
	case metaculus.TypeNumeric, metaculus.TypeDiscrete:
		pts, err := extract.Percentiles(text)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Percentiles: pts}, nil
	default:
		return Outcome{}, fmt.Errorf("forecast: unsupported question type %q", q.Type)
	}
}

func (f *Forecaster) submit(ctx context.Context, q *metaculus.Question, rec *Record) error {
	payload, err := rec.Outcome.Payload(q)
	if err != nil {
		return err
	}
	if err := f.submitter.SubmitForecast(ctx, payload); err != nil {
		return err
	}
	if rec.Reasoning != "" && q.PostID != 0 {
		if err := f.submitter.PostComment(ctx, q.PostID, rec.Reasoning); err != nil {
			f.log.Warn().Err(err).Int64("post_id", q.PostID).Msg("posting reasoning comment failed")
		}
	}
	return nil
}

func (f *Forecaster) logOutcome(q *metaculus.Question, rec *Record) {
	evt := f.log.Info().
		Int64("question_id", q.ID).
		Str("run_id", rec.RunID).
		Bool("research_degraded", rec.ResearchDegraded).
		Bool("submitted", rec.Submitted)
	switch {
	case rec.Outcome.Probability != nil:
		evt = evt.Float64("probability", *rec.Outcome.Probability)
	case len(rec.Outcome.Percentiles) > 0:
		evt = evt.Int("percentile_points", len(rec.Outcome.Percentiles))
	case len(rec.Outcome.Options) > 0:
		evt = evt.Int("options", len(rec.Outcome.Options))
	}
	evt.Msg("forecast complete")
}
