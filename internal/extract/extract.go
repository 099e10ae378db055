// Package extract parses free-form model responses into structured
// forecasts. All functions are pure; when the expected shape is not
// found they return an *ExtractionError instead of guessing a value.
package extract

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ExtractionError reports that the searched text did not contain a
// recoverable forecast of the expected shape.
type ExtractionError struct {
	Pattern string
	Text    string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: no %s found in response: %s", e.Pattern, excerpt(e.Text))
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}

var (
	rePercent     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	reBareDecimal = regexp.MustCompile(`(?i)(?:probability|answer)\D{0,20}?(0?\.\d+)`)
	rePercentile  = regexp.MustCompile(`(?i)(?:percentile\s*(\d+(?:\.\d+)?)|(\d+(?:\.\d+)?)\s*(?:st|nd|rd|th)\s+percentile)\s*[:\-]?\s*(-?\s*\$?\s*-?[\d,]+(?:\.\d+)?)`)
	reNumber      = regexp.MustCompile(`(-?[\d,]+(?:\.\d+)?)\s*(%?)`)
)

// Probability returns the final probability stated in text, normalized
// to the open interval (0, 1).
//
// Rule: the last "NN%" mention wins. When no percent sign appears, the
// last decimal in (0, 1) following a "probability" or "answer" marker
// is used instead. Values above 100% are an error, as is a negative
// percentage (a minus glued to the number; after a digit it reads as a
// range dash, so "60-70%" keeps 70). 0% and 100% are pulled to the
// 1%..99% boundary.
func Probability(text string) (float64, error) {
	if idx := rePercent.FindAllStringSubmatchIndex(text, -1); len(idx) > 0 {
		m := idx[len(idx)-1]
		start := m[2]
		pct, err := strconv.ParseFloat(text[start:m[3]], 64)
		if err != nil {
			return 0, &ExtractionError{Pattern: "probability percentage", Text: text}
		}
		if start > 0 && text[start-1] == '-' && (start < 2 || text[start-2] < '0' || text[start-2] > '9') {
			return 0, fmt.Errorf("extract: probability -%v%% out of range", pct)
		}
		if pct > 100 {
			return 0, fmt.Errorf("extract: probability %v%% out of range", pct)
		}
		return clampProbability(pct / 100), nil
	}
	if m := reBareDecimal.FindAllStringSubmatch(text, -1); len(m) > 0 {
		if val, err := strconv.ParseFloat(m[len(m)-1][1], 64); err == nil && val > 0 && val < 1 {
			return clampProbability(val), nil
		}
	}
	return 0, &ExtractionError{Pattern: "probability percentage", Text: text}
}

func clampProbability(p float64) float64 {
	return math.Min(0.99, math.Max(0.01, p))
}

// Percentile pairs a percentile rank with the forecast value at that rank.
type Percentile struct {
	Rank  float64
	Value float64
}

// Percentiles returns every percentile/value pair stated in text, in
// ascending rank order with the stated pairing preserved. Values must
// already be non-decreasing across ranks; a crossing distribution is
// an error, never silently sorted into shape. When a rank is stated
// more than once the last mention wins.
func Percentiles(text string) ([]Percentile, error) {
	matches := rePercentile.FindAllStringSubmatch(text, -1)
	byRank := make(map[float64]float64)
	var ranks []float64
	for _, m := range matches {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		rank, err := strconv.ParseFloat(raw, 64)
		if err != nil || rank <= 0 || rank >= 100 {
			continue
		}
		value, err := parseNumber(m[3])
		if err != nil {
			continue
		}
		if _, seen := byRank[rank]; !seen {
			ranks = append(ranks, rank)
		}
		byRank[rank] = value
	}
	if len(ranks) == 0 {
		return nil, &ExtractionError{Pattern: "percentile values", Text: text}
	}
	sort.Float64s(ranks)

	out := make([]Percentile, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, Percentile{Rank: rank, Value: byRank[rank]})
	}
	for i := 1; i < len(out); i++ {
		if out[i].Value < out[i-1].Value {
			return nil, fmt.Errorf("extract: percentile %v value %v below percentile %v value %v",
				out[i].Rank, out[i].Value, out[i-1].Rank, out[i-1].Value)
		}
	}
	return out, nil
}

// OptionProbabilities matches a probability to every supplied option
// label. Each option takes the last number on the last line mentioning
// its label (case-insensitive); a label with no usable mention fails
// the whole extraction, since a partial distribution cannot be
// normalized safely. Numbers above 1 and numbers marked "%" are read
// as percentages. The distribution is rescaled to sum to exactly 1 and
// the second result reports whether rescaling moved the values; a raw
// sum further than 0.01 from 1 is an error.
func OptionProbabilities(text string, options []string) (map[string]float64, bool, error) {
	if len(options) == 0 {
		return nil, false, fmt.Errorf("extract: no options supplied")
	}
	lines := strings.Split(text, "\n")
	probs := make(map[string]float64, len(options))
	for _, opt := range options {
		val, ok := lastOptionMention(lines, opt)
		if !ok {
			return nil, false, &ExtractionError{
				Pattern: fmt.Sprintf("probability for option %q", opt),
				Text:    text,
			}
		}
		probs[opt] = val
	}

	var sum float64
	for _, v := range probs {
		sum += v
	}
	if math.Abs(sum-1) > 1e-2 {
		return nil, false, fmt.Errorf("extract: option probabilities sum to %.4f, want 1 within 0.01", sum)
	}
	rescaled := math.Abs(sum-1) > 1e-9
	if rescaled {
		for k, v := range probs {
			probs[k] = v / sum
		}
	}
	return probs, rescaled, nil
}

func lastOptionMention(lines []string, option string) (float64, bool) {
	needle := strings.ToLower(option)
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		ms := reNumber.FindAllStringSubmatch(line, -1)
		if len(ms) == 0 {
			continue
		}
		last := ms[len(ms)-1]
		val, err := parseNumber(last[1])
		if err != nil {
			continue
		}
		if last[2] == "%" || val > 1 {
			val /= 100
		}
		if val < 0 || val > 1 {
			continue
		}
		return val, true
	}
	return 0, false
}

// parseNumber handles thousands separators, currency markers, and a
// sign written on either side of the marker ("-$500", "$-500").
func parseNumber(raw string) (float64, error) {
	neg := strings.Contains(raw, "-")
	cleaned := strings.NewReplacer("$", "", ",", "", "-", "", " ", "").Replace(raw)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
