package audit

import (
	"math"

	"callaudit-platform/internal/rubric"
)

// Aggregate turns per-criterion verdicts into dimensional scores and one
// overall score.
//
// It is pure and deterministic: identical verdicts, dimension map, and
// weights always yield identical output. That property underpins audit
// reproducibility, so keep this function free of any state or randomness.
//
// Rules:
//   - Per-criterion value: PASS=100, PARTIAL=50, FAIL=0.
//   - Per-dimension score: arithmetic mean over that dimension's verdicts;
//     nil (not zero) when the dimension has no contributing verdicts.
//   - Overall: weighted mean over all verdicts using each criterion's weight
//     (1 when unset), rounded to the nearest integer, clamped to [0, 100].
func Aggregate(verdicts []Verdict, dimensionMap map[rubric.Dimension][]string, weights map[string]float64) (int, map[rubric.Dimension]*float64) {
	byDim := make(map[rubric.Dimension]*float64, len(rubric.Dimensions()))

	values := make(map[string]float64, len(verdicts))
	for _, v := range verdicts {
		values[v.CriterionID] = v.Result.NumericValue()
	}

	for _, dim := range rubric.Dimensions() {
		var sum float64
		var n int
		for _, criterionID := range dimensionMap[dim] {
			val, ok := values[criterionID]
			if !ok {
				continue
			}
			sum += val
			n++
		}
		if n == 0 {
			byDim[dim] = nil
			continue
		}
		mean := sum / float64(n)
		byDim[dim] = &mean
	}

	var weightedSum, weightTotal float64
	for _, v := range verdicts {
		w, ok := weights[v.CriterionID]
		if !ok || w <= 0 {
			w = 1
		}
		weightedSum += v.Result.NumericValue() * w
		weightTotal += w
	}
	if weightTotal == 0 {
		return 0, byDim
	}

	overall := int(math.Round(weightedSum / weightTotal))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}
	return overall, byDim
}
