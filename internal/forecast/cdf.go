package forecast

import (
	"fmt"
	"math"
	"sort"

	"github.com/chris8332558/chris-metac-bot-template/internal/extract"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
)

const (
	cdfPoints  = 201
	minCDFStep = 5e-05
)

type anchor struct {
	value float64
	prob  float64
}

// BuildCDF renders percentile points onto the platform's CDF grid for a
// continuous question: cdfPoints locations spanning the question's
// range (logarithmic when a zero point is set), linearly interpolated
// between the stated percentiles. Closed bounds pin the end values to 0
// and 1; open bounds leave probability mass outside the range. A thin
// uniform blend keeps every consecutive step at or above the platform's
// minimum.
func BuildCDF(points []extract.Percentile, q *metaculus.Question) ([]float64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("forecast: no percentile points to build a cdf from")
	}
	if q.Scaling.RangeMin == nil || q.Scaling.RangeMax == nil {
		return nil, fmt.Errorf("forecast: question %d has no scaling range", q.ID)
	}
	rangeMin, rangeMax := *q.Scaling.RangeMin, *q.Scaling.RangeMax
	if rangeMax <= rangeMin {
		return nil, fmt.Errorf("forecast: question %d has invalid range [%v, %v]", q.ID, rangeMin, rangeMax)
	}
	locate, err := locationScaler(rangeMin, rangeMax, q.Scaling.ZeroPoint)
	if err != nil {
		return nil, err
	}

	rangeSize := rangeMax - rangeMin
	buffer := 0.01 * rangeSize
	if rangeSize > 100 {
		buffer = 1
	}

	// Closed bounds cannot hold mass at or beyond the boundary, so
	// stated values are nudged inside by the buffer.
	anchors := make([]anchor, 0, len(points)+2)
	for _, p := range points {
		v := p.Value
		if !q.OpenLowerBound && v < rangeMin+buffer {
			v = rangeMin + buffer
		}
		if !q.OpenUpperBound && v > rangeMax-buffer {
			v = rangeMax - buffer
		}
		anchors = append(anchors, anchor{value: v, prob: p.Rank / 100})
	}

	first, last := points[0], points[len(points)-1]
	if q.OpenLowerBound {
		if rangeMin < first.Value {
			anchors = append(anchors, anchor{value: rangeMin, prob: first.Rank / 200})
		}
	} else {
		anchors = append(anchors, anchor{value: rangeMin, prob: 0})
	}
	if q.OpenUpperBound {
		if rangeMax > last.Value {
			anchors = append(anchors, anchor{value: rangeMax, prob: (100 - (100-last.Rank)/2) / 100})
		}
	} else {
		anchors = append(anchors, anchor{value: rangeMax, prob: 1})
	}

	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].value == anchors[j].value {
			return anchors[i].prob < anchors[j].prob
		}
		return anchors[i].value < anchors[j].value
	})

	size := cdfPoints
	if q.Type == metaculus.TypeDiscrete && q.InboundOutcomeCount > 0 {
		size = q.InboundOutcomeCount + 1
	}

	cdf := make([]float64, size)
	blend := minCDFStep * float64(size-1) * 1.1
	for i := range cdf {
		x := float64(i) / float64(size-1)
		raw := interpolateProb(anchors, locate(x))
		cdf[i] = (1-blend)*raw + blend*x
		cdf[i] = math.Min(1, math.Max(0, cdf[i]))
	}

	for i := 1; i < len(cdf); i++ {
		if cdf[i]-cdf[i-1] < minCDFStep {
			return nil, fmt.Errorf("forecast: cdf step below %v at index %d", minCDFStep, i)
		}
	}
	return cdf, nil
}

// locationScaler maps a grid fraction in [0, 1] onto the question's
// value range. A zero point selects the platform's log-like scale.
func locationScaler(rangeMin, rangeMax float64, zeroPoint *float64) (func(float64) float64, error) {
	if zeroPoint == nil {
		return func(x float64) float64 {
			return rangeMin + (rangeMax-rangeMin)*x
		}, nil
	}
	ratio := (rangeMax - *zeroPoint) / (rangeMin - *zeroPoint)
	if ratio <= 0 || ratio == 1 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return nil, fmt.Errorf("forecast: zero point %v incompatible with range [%v, %v]", *zeroPoint, rangeMin, rangeMax)
	}
	return func(x float64) float64 {
		return rangeMin + (rangeMax-rangeMin)*(math.Pow(ratio, x)-1)/(ratio-1)
	}, nil
}

func interpolateProb(anchors []anchor, loc float64) float64 {
	if loc <= anchors[0].value {
		return anchors[0].prob
	}
	if loc >= anchors[len(anchors)-1].value {
		return anchors[len(anchors)-1].prob
	}
	for i := 1; i < len(anchors); i++ {
		if loc > anchors[i].value {
			continue
		}
		lo, hi := anchors[i-1], anchors[i]
		if hi.value == lo.value {
			return hi.prob
		}
		return lo.prob + (hi.prob-lo.prob)*(loc-lo.value)/(hi.value-lo.value)
	}
	return anchors[len(anchors)-1].prob
}
