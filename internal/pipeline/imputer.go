package pipeline

import (
	"math"
	"math/rand"

	"github.com/quantworks/workbench/internal/contracts"
)

// Imputation defaults. A fixed iteration budget and seed make the fill
// bit-identical for identical input and configuration.
const (
	DefaultImputeIterations = 10
	DefaultImputeSeed       = 42

	// ridge keeps the normal equations solvable when predictors are collinear
	// (e.g. open ≈ close on quiet data).
	ridge = 1e-8
)

// minObservations is the smallest number of non-missing values a field may
// have and still be regressed on the other four fields plus an intercept.
var minObservations = len(contracts.Fields)

// Imputer fills missing OHLCV values by round-robin regression of each field
// on the others, then repairs OHLC consistency.
type Imputer struct {
	MaxIterations int
	Seed          int64
}

// NewImputer creates an imputer with the given iteration budget and seed.
func NewImputer(maxIterations int, seed int64) *Imputer {
	if maxIterations <= 0 {
		maxIterations = DefaultImputeIterations
	}
	return &Imputer{MaxIterations: maxIterations, Seed: seed}
}

// Impute returns a new series with zero remaining missing values and the OHLC
// invariant holding on every bar, plus the number of bars that were filled.
// Fatal when a field has too few non-missing observations to fit a
// regression; the error names the field.
func (im *Imputer) Impute(s *contracts.Series) (*contracts.Series, int, error) {
	out := s.Clone()
	n := out.Len()
	if n == 0 {
		return out, 0, nil
	}

	k := len(contracts.Fields)
	matrix := make([][]float64, n)
	missing := make([][]bool, n)
	imputedBars := 0
	for i := range out.Bars {
		matrix[i] = make([]float64, k)
		missing[i] = make([]bool, k)
		barMissing := false
		for j, f := range contracts.Fields {
			v := out.Bars[i].Value(f)
			matrix[i][j] = v
			if math.IsNaN(v) {
				missing[i][j] = true
				barMissing = true
			}
		}
		if barMissing {
			imputedBars++
		}
	}

	if imputedBars == 0 {
		EnforceConsistency(out)
		return out, 0, nil
	}

	// Standardize each field to zero mean / unit variance over its observed
	// values; constant fields keep std=1 so they pass through unchanged.
	means := make([]float64, k)
	stds := make([]float64, k)
	targets := make([]int, 0, k) // fields that actually need filling
	for j := range contracts.Fields {
		obs := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			if !missing[i][j] {
				obs = append(obs, matrix[i][j])
			}
		}
		nMissing := n - len(obs)
		if nMissing > 0 && len(obs) < minObservations {
			return nil, 0, &contracts.ImputationError{Field: contracts.Fields[j], Observed: len(obs)}
		}
		means[j], stds[j] = meanStd(obs)
		if stds[j] == 0 {
			stds[j] = 1
		}
		for i := 0; i < n; i++ {
			if missing[i][j] {
				matrix[i][j] = 0 // standardized mean
			} else {
				matrix[i][j] = (matrix[i][j] - means[j]) / stds[j]
			}
		}
		if nMissing > 0 {
			targets = append(targets, j)
		}
	}

	// Round-robin regression; the seed fixes the per-iteration visit order.
	rng := rand.New(rand.NewSource(im.Seed))
	for iter := 0; iter < im.MaxIterations; iter++ {
		order := make([]int, len(targets))
		copy(order, targets)
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })

		for _, j := range order {
			if err := regressField(matrix, missing, j); err != nil {
				return nil, 0, err
			}
		}
	}

	// Invert the standardization and write back.
	for i := 0; i < n; i++ {
		for j, f := range contracts.Fields {
			if missing[i][j] {
				out.Bars[i].SetValue(f, matrix[i][j]*stds[j]+means[j])
			}
		}
	}

	EnforceConsistency(out)
	return out, imputedBars, nil
}

// regressField fits field j on the other fields (plus intercept) over the
// rows where j is observed, then predicts j on the rows where it is missing.
func regressField(matrix [][]float64, missing [][]bool, j int) error {
	n := len(matrix)
	k := len(matrix[0])
	p := k // intercept + (k-1) predictors

	// Normal equations M w = v over observed rows.
	m := make([][]float64, p)
	for a := range m {
		m[a] = make([]float64, p)
	}
	v := make([]float64, p)

	observedRows := 0
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		if missing[i][j] {
			continue
		}
		observedRows++
		fillDesignRow(row, matrix[i], j)
		y := matrix[i][j]
		for a := 0; a < p; a++ {
			v[a] += row[a] * y
			for b := 0; b < p; b++ {
				m[a][b] += row[a] * row[b]
			}
		}
	}

	if observedRows < minObservations {
		return &contracts.ImputationError{Field: contracts.Fields[j], Observed: observedRows}
	}

	for a := 0; a < p; a++ {
		m[a][a] += ridge
	}

	w, ok := solveLinear(m, v)
	if !ok {
		return &contracts.ImputationError{Field: contracts.Fields[j], Observed: observedRows}
	}

	for i := 0; i < n; i++ {
		if !missing[i][j] {
			continue
		}
		fillDesignRow(row, matrix[i], j)
		pred := 0.0
		for a := 0; a < p; a++ {
			pred += w[a] * row[a]
		}
		matrix[i][j] = pred
	}

	return nil
}

// fillDesignRow writes [1, x_0..x_k except j] into row.
func fillDesignRow(row, values []float64, j int) {
	row[0] = 1
	idx := 1
	for c := range values {
		if c == j {
			continue
		}
		row[idx] = values[c]
		idx++
	}
}

// solveLinear solves a square system by Gaussian elimination with partial
// pivoting. The matrix and vector are modified in place.
func solveLinear(m [][]float64, v []float64) ([]float64, bool) {
	p := len(v)
	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		v[col], v[pivot] = v[pivot], v[col]

		for r := col + 1; r < p; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c < p; c++ {
				m[r][c] -= factor * m[col][c]
			}
			v[r] -= factor * v[col]
		}
	}

	w := make([]float64, p)
	for r := p - 1; r >= 0; r-- {
		sum := v[r]
		for c := r + 1; c < p; c++ {
			sum -= m[r][c] * w[c]
		}
		w[r] = sum / m[r][r]
	}
	return w, true
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// EnforceConsistency force-repairs the OHLC invariant:
// high = max(open, close, high), low = min(open, close, low), volume >= 0.
func EnforceConsistency(s *contracts.Series) {
	for i := range s.Bars {
		b := &s.Bars[i]
		b.High = math.Max(b.High, math.Max(b.Open, b.Close))
		b.Low = math.Min(b.Low, math.Min(b.Open, b.Close))
		if b.Volume < 0 {
			b.Volume = 0
		}
	}
}
