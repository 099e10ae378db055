package forecast

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/chris8332558/chris-metac-bot-template/internal/extract"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
)

// Outcome is the structured forecast for one question. Exactly one
// value field is set, matching the question type.
type Outcome struct {
	Probability *float64             `json:"probability,omitempty"`
	Percentiles []extract.Percentile `json:"percentiles,omitempty"`
	Options     map[string]float64   `json:"options,omitempty"`
	// Rescaled records that the option distribution was normalized to
	// sum to exactly 1.
	Rescaled bool `json:"rescaled,omitempty"`
}

// Record is one completed forecast for one question, as persisted to
// the history store and published to the forecast topic.
type Record struct {
	RunID            string    `json:"run_id"`
	QuestionID       int64     `json:"question_id"`
	PostID           int64     `json:"post_id"`
	Title            string    `json:"title"`
	QuestionType     string    `json:"question_type"`
	Outcome          Outcome   `json:"outcome"`
	ResearchDegraded bool      `json:"research_degraded"`
	Submitted        bool      `json:"submitted"`
	Reasoning        string    `json:"reasoning,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// DistributionJSON serializes the non-binary part of the outcome for
// storage. Empty for plain binary forecasts.
func (o Outcome) DistributionJSON() (string, error) {
	if len(o.Percentiles) == 0 && len(o.Options) == 0 {
		return "", nil
	}
	b, err := json.Marshal(struct {
		Percentiles []extract.Percentile `json:"percentiles,omitempty"`
		Options     map[string]float64   `json:"options,omitempty"`
		Rescaled    bool                 `json:"rescaled,omitempty"`
	}{o.Percentiles, o.Options, o.Rescaled})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Payload renders the outcome as the platform submission payload for q.
func (o Outcome) Payload(q *metaculus.Question) (metaculus.ForecastPayload, error) {
	p := metaculus.ForecastPayload{Question: q.ID}
	switch q.Type {
	case metaculus.TypeBinary:
		if o.Probability == nil {
			return p, fmt.Errorf("forecast: binary outcome missing probability")
		}
		p.ProbabilityYes = o.Probability
	case metaculus.TypeMultipleChoice:
		if len(o.Options) == 0 {
			return p, fmt.Errorf("forecast: multiple choice outcome missing options")
		}
		p.ProbabilityYesPerCategory = o.Options
	case metaculus.TypeNumeric, metaculus.TypeDiscrete:
		cdf, err := BuildCDF(o.Percentiles, q)
		if err != nil {
			return p, err
		}
		p.ContinuousCDF = cdf
	default:
		return p, fmt.Errorf("forecast: unsupported question type %q", q.Type)
	}
	return p, nil
}

// Aggregate combines the outcomes of repeated runs over one question:
// median probability for binary, per-rank median for percentile
// forecasts, renormalized mean for option distributions. All runs must
// have produced the same shape.
func Aggregate(outcomes []Outcome) (Outcome, error) {
	if len(outcomes) == 0 {
		return Outcome{}, fmt.Errorf("forecast: no outcomes to aggregate")
	}
	if len(outcomes) == 1 {
		return outcomes[0], nil
	}

	first := outcomes[0]
	switch {
	case first.Probability != nil:
		vals := make([]float64, 0, len(outcomes))
		for _, o := range outcomes {
			if o.Probability == nil {
				return Outcome{}, fmt.Errorf("forecast: runs disagree on outcome shape")
			}
			vals = append(vals, *o.Probability)
		}
		m := median(vals)
		return Outcome{Probability: &m}, nil

	case len(first.Percentiles) > 0:
		byRank := make(map[float64][]float64)
		var ranks []float64
		for _, o := range outcomes {
			if len(o.Percentiles) == 0 {
				return Outcome{}, fmt.Errorf("forecast: runs disagree on outcome shape")
			}
			for _, p := range o.Percentiles {
				if _, seen := byRank[p.Rank]; !seen {
					ranks = append(ranks, p.Rank)
				}
				byRank[p.Rank] = append(byRank[p.Rank], p.Value)
			}
		}
		sort.Float64s(ranks)
		merged := make([]extract.Percentile, 0, len(ranks))
		for _, r := range ranks {
			merged = append(merged, extract.Percentile{Rank: r, Value: median(byRank[r])})
		}
		for i := 1; i < len(merged); i++ {
			if merged[i].Value < merged[i-1].Value {
				return Outcome{}, fmt.Errorf("forecast: aggregated percentiles are not monotone at rank %v", merged[i].Rank)
			}
		}
		return Outcome{Percentiles: merged}, nil

	case len(first.Options) > 0:
		sums := make(map[string]float64, len(first.Options))
		rescaled := false
		for _, o := range outcomes {
			if len(o.Options) == 0 {
				return Outcome{}, fmt.Errorf("forecast: runs disagree on outcome shape")
			}
			rescaled = rescaled || o.Rescaled
			for label, v := range o.Options {
				sums[label] += v
			}
		}
		var total float64
		for _, v := range sums {
			total += v
		}
		if total <= 0 {
			return Outcome{}, fmt.Errorf("forecast: aggregated option mass is zero")
		}
		mean := make(map[string]float64, len(sums))
		for label, v := range sums {
			mean[label] = v / total
		}
		return Outcome{Options: mean, Rescaled: rescaled}, nil

	default:
		return Outcome{}, fmt.Errorf("forecast: empty outcome cannot be aggregated")
	}
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
