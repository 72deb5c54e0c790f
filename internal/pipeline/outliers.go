package pipeline

import (
	"math"
	"sort"

	"github.com/quantworks/workbench/internal/contracts"
)

// Outlier detection thresholds. Defaults follow the standard robust rules:
// median ± 3*MAD and the 1.5*IQR Tukey fences.
const (
	DefaultMADMultiplier = 3.0
	DefaultIQRMultiplier = 1.5
)

// DetectOutliers flags outliers per field by two independent methods, MAD and
// IQR. The index sets are reported separately so the caller can see where the
// methods disagree. Detection only; no bar is removed.
func DetectOutliers(s *contracts.Series, madK, iqrK float64) contracts.OutlierReport {
	report := contracts.OutlierReport{
		MAD: make(map[contracts.Field][]int, len(contracts.Fields)),
		IQR: make(map[contracts.Field][]int, len(contracts.Fields)),
	}

	for _, f := range contracts.Fields {
		values, indices := observed(s, f)
		if len(values) < 3 {
			continue
		}

		med := median(values)
		deviations := make([]float64, len(values))
		for i, v := range values {
			deviations[i] = math.Abs(v - med)
		}
		mad := median(deviations)

		q1 := quantile(values, 0.25)
		q3 := quantile(values, 0.75)
		iqr := q3 - q1

		for i, v := range values {
			if math.Abs(v-med) > madK*mad {
				report.MAD[f] = append(report.MAD[f], indices[i])
			}
			if v < q1-iqrK*iqr || v > q3+iqrK*iqr {
				report.IQR[f] = append(report.IQR[f], indices[i])
			}
		}
	}

	return report
}

// observed returns the non-NaN values of a field with their bar indices.
func observed(s *contracts.Series, f contracts.Field) ([]float64, []int) {
	values := make([]float64, 0, s.Len())
	indices := make([]int, 0, s.Len())
	for i := range s.Bars {
		v := s.Bars[i].Value(f)
		if !isNaN(v) {
			values = append(values, v)
			indices = append(indices, i)
		}
	}
	return values, indices
}

func isNaN(v float64) bool { return math.IsNaN(v) }

// median returns the middle value of the input (not modified).
func median(values []float64) float64 {
	return quantile(values, 0.5)
}

// quantile computes the q-th quantile with linear interpolation between order
// statistics, matching the convention of the statistics used downstream.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
