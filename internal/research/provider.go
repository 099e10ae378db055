package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chris8332558/chris-metac-bot-template/internal/cache"
	"github.com/chris8332558/chris-metac-bot-template/internal/llm"
	"github.com/chris8332558/chris-metac-bot-template/internal/logging"
)

const researchPreamble = `You are a research assistant supporting a professional forecaster. Gather the most recent and relevant information bearing on the question below and write a concise research report. Cover the current state of affairs, historical base rates for comparable events, the key actors and deadlines, and any evidence that should move the estimate in either direction. Report findings only; do not state a probability of your own.`

// Result carries research text or the reason research failed. Research
// is best-effort context, so callers receive a Result instead of an
// error and decide whether a degraded placeholder is acceptable.
type Result struct {
	Text string
	Err  error
}

// Degraded reports whether research failed and Context is a placeholder.
func (r Result) Degraded() bool { return r.Err != nil }

// Context renders text usable as forecast context either way: the
// research itself, or a placeholder naming the failure.
func (r Result) Context() string {
	if r.Err != nil {
		return fmt.Sprintf("Research could not be completed: %v", r.Err)
	}
	return r.Text
}

// Details carries the optional question context appended to the query.
type Details struct {
	ResolutionCriteria string
	FinePrint          string
}

// Caller is the slice of the model client the provider needs.
type Caller interface {
	Call(ctx context.Context, prompt string, opts ...llm.CallOption) (string, error)
}

// Config holds provider settings.
type Config struct {
	Model       string
	Temperature float64
}

// Provider conducts best-effort research for a question.
type Provider struct {
	caller      Caller
	cache       cache.ResearchCache
	model       string
	temperature float64
	log         zerolog.Logger
}

// New creates a research provider. researchCache may be nil, which
// disables caching.
func New(caller Caller, researchCache cache.ResearchCache, cfg Config) *Provider {
	return &Provider{
		caller:      caller,
		cache:       researchCache,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         logging.Component("research"),
	}
}

// Conduct researches the question with the research model. It never
// fails: the Result either carries research text or records why it is
// degraded. Cache problems are logged and ignored.
func (p *Provider) Conduct(ctx context.Context, question string, details *Details) Result {
	prompt := buildQuery(question, details)

	var cacheKey string
	if p.cache != nil {
		cacheKey = cache.Key(p.model, prompt)
		if text, ok, err := p.cache.Get(ctx, cacheKey); err != nil {
			p.log.Warn().Err(err).Msg("research cache read failed")
		} else if ok {
			p.log.Debug().Str("question", question).Msg("research cache hit")
			return Result{Text: text}
		}
	}

	p.log.Info().Str("model", p.model).Str("question", question).Msg("running research")

	text, err := p.caller.Call(ctx, prompt, llm.WithModel(p.model), llm.WithTemperature(p.temperature))
	if err != nil {
		p.log.Error().Err(err).Msg("research failed")
		return Result{Err: err}
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, text); err != nil {
			p.log.Warn().Err(err).Msg("research cache write failed")
		}
	}
	return Result{Text: text}
}

// buildQuery composes the research prompt: preamble, the question, then
// the labeled criteria and fine print sections in that fixed order.
func buildQuery(question string, details *Details) string {
	var b strings.Builder
	b.WriteString(researchPreamble)
	b.WriteString("\n\nThe question is: ")
	b.WriteString(question)
	if details != nil {
		if details.ResolutionCriteria != "" {
			b.WriteString("\n\nThis question's outcome will be determined by the specific criteria below:\n")
			b.WriteString(details.ResolutionCriteria)
		}
		if details.FinePrint != "" {
			b.WriteString("\n\nFine Print: ")
			b.WriteString(details.FinePrint)
		}
	}
	return b.String()
}
