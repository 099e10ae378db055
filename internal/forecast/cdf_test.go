package forecast

import (
	"math"
	"testing"

	"github.com/chris8332558/chris-metac-bot-template/internal/extract"
	"github.com/chris8332558/chris-metac-bot-template/internal/metaculus"
)

func fptr(v float64) *float64 { return &v }

func numericQuestion(openLower, openUpper bool) *metaculus.Question {
	return &metaculus.Question{
		ID:             1,
		Type:           metaculus.TypeNumeric,
		Scaling:        metaculus.Scaling{RangeMin: fptr(0), RangeMax: fptr(100)},
		OpenLowerBound: openLower,
		OpenUpperBound: openUpper,
	}
}

func assertValidCDF(t *testing.T, cdf []float64) {
	t.Helper()
	for i, v := range cdf {
		if v < 0 || v > 1 {
			t.Fatalf("cdf[%d] = %v out of [0, 1]", i, v)
		}
		if i > 0 && cdf[i]-cdf[i-1] < minCDFStep {
			t.Fatalf("cdf step at %d = %v below minimum %v", i, cdf[i]-cdf[i-1], minCDFStep)
		}
	}
}

func TestBuildCDFClosedBounds(t *testing.T) {
	points := []extract.Percentile{{Rank: 10, Value: 20}, {Rank: 50, Value: 50}, {Rank: 90, Value: 80}}
	cdf, err := BuildCDF(points, numericQuestion(false, false))
	if err != nil {
		t.Fatalf("BuildCDF: %v", err)
	}
	if len(cdf) != 201 {
		t.Fatalf("len = %d, want 201", len(cdf))
	}
	assertValidCDF(t, cdf)
	if cdf[0] != 0 {
		t.Errorf("closed lower bound: cdf[0] = %v, want 0", cdf[0])
	}
	if cdf[200] != 1 {
		t.Errorf("closed upper bound: cdf[200] = %v, want 1", cdf[200])
	}
	// Grid index 100 sits at value 50, the stated median.
	if math.Abs(cdf[100]-0.5) > 1e-9 {
		t.Errorf("cdf[100] = %v, want 0.5", cdf[100])
	}
}

func TestBuildCDFOpenBounds(t *testing.T) {
	points := []extract.Percentile{{Rank: 10, Value: 20}, {Rank: 90, Value: 80}}
	cdf, err := BuildCDF(points, numericQuestion(true, true))
	if err != nil {
		t.Fatalf("BuildCDF: %v", err)
	}
	assertValidCDF(t, cdf)
	if cdf[0] <= 0 {
		t.Errorf("open lower bound should keep mass below the range: cdf[0] = %v", cdf[0])
	}
	if cdf[200] >= 1 {
		t.Errorf("open upper bound should keep mass above the range: cdf[200] = %v", cdf[200])
	}
}

func TestBuildCDFFlatDistributionStillSteps(t *testing.T) {
	points := []extract.Percentile{{Rank: 10, Value: 50}, {Rank: 90, Value: 50}}
	cdf, err := BuildCDF(points, numericQuestion(false, false))
	if err != nil {
		t.Fatalf("BuildCDF: %v", err)
	}
	assertValidCDF(t, cdf)
}

func TestBuildCDFLogScale(t *testing.T) {
	q := &metaculus.Question{
		ID:   2,
		Type: metaculus.TypeNumeric,
		Scaling: metaculus.Scaling{
			RangeMin:  fptr(1),
			RangeMax:  fptr(10000),
			ZeroPoint: fptr(0),
		},
	}
	points := []extract.Percentile{{Rank: 50, Value: 100}}
	cdf, err := BuildCDF(points, q)
	if err != nil {
		t.Fatalf("BuildCDF: %v", err)
	}
	assertValidCDF(t, cdf)
	// With zero point 0 the grid midpoint lands on the geometric mean
	// of the range, which is the stated median.
	if math.Abs(cdf[100]-0.5) > 0.01 {
		t.Errorf("cdf[100] = %v, want ~0.5", cdf[100])
	}
}

func TestBuildCDFDiscreteGridSize(t *testing.T) {
	q := &metaculus.Question{
		ID:                  3,
		Type:                metaculus.TypeDiscrete,
		Scaling:             metaculus.Scaling{RangeMin: fptr(0), RangeMax: fptr(10)},
		InboundOutcomeCount: 10,
	}
	points := []extract.Percentile{{Rank: 10, Value: 2}, {Rank: 90, Value: 8}}
	cdf, err := BuildCDF(points, q)
	if err != nil {
		t.Fatalf("BuildCDF: %v", err)
	}
	if len(cdf) != 11 {
		t.Errorf("len = %d, want 11", len(cdf))
	}
	assertValidCDF(t, cdf)
}

func TestBuildCDFErrors(t *testing.T) {
	if _, err := BuildCDF(nil, numericQuestion(false, false)); err == nil {
		t.Error("expected error for empty points")
	}

	noRange := &metaculus.Question{ID: 4, Type: metaculus.TypeNumeric}
	if _, err := BuildCDF([]extract.Percentile{{Rank: 50, Value: 1}}, noRange); err == nil {
		t.Error("expected error for missing scaling range")
	}

	badZero := &metaculus.Question{
		ID:      5,
		Type:    metaculus.TypeNumeric,
		Scaling: metaculus.Scaling{RangeMin: fptr(0), RangeMax: fptr(100), ZeroPoint: fptr(50)},
	}
	if _, err := BuildCDF([]extract.Percentile{{Rank: 50, Value: 60}}, badZero); err == nil {
		t.Error("expected error for zero point inside the range")
	}

	zeroAtMin := &metaculus.Question{
		ID:      6,
		Type:    metaculus.TypeNumeric,
		Scaling: metaculus.Scaling{RangeMin: fptr(0), RangeMax: fptr(100), ZeroPoint: fptr(0)},
	}
	if _, err := BuildCDF([]extract.Percentile{{Rank: 50, Value: 60}}, zeroAtMin); err == nil {
		t.Error("expected error for zero point on the range minimum")
	}
}
