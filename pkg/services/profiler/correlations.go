package profiler

import (
	"math"

	"github.com/de-tools/data-profiler/pkg/models/domain"
)

const (
	CorrPearson  = "pearson"
	CorrSpearman = "spearman"
)

// minCorrObservations is the least number of complete pairs needed for a
// coefficient; sparser pairs report NaN.
const minCorrObservations = 3

// correlate computes Pearson and Spearman matrices for the given columns.
// Each column holds one value per row with NaN marking missing cells;
// coefficients use pairwise complete observations.
func correlate(names []string, columns [][]float64) []domain.CorrMatrix {
	n := len(names)
	if n < 2 {
		return nil
	}

	pearson := newMatrix(n)
	spearman := newMatrix(n)
	for i := 0; i < n; i++ {
		pearson[i][i] = 1
		spearman[i][i] = 1
		for j := 0; j < i; j++ {
			xs, ys := completePairs(columns[i], columns[j])
			p, s := math.NaN(), math.NaN()
			if len(xs) >= minCorrObservations {
				p = pearsonR(xs, ys)
				s = pearsonR(ranks(xs), ranks(ys))
			}
			pearson[i][j], pearson[j][i] = p, p
			spearman[i][j], spearman[j][i] = s, s
		}
	}

	return []domain.CorrMatrix{
		{Method: CorrPearson, Columns: names, Values: pearson},
		{Method: CorrSpearman, Columns: names, Values: spearman},
	}
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func completePairs(a, b []float64) ([]float64, []float64) {
	size := min(len(a), len(b))
	xs := make([]float64, 0, size)
	ys := make([]float64, 0, size)
	for k := 0; k < size; k++ {
		x, y := a[k], b[k]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// pearsonR returns NaN when either side is constant.
func pearsonR(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return math.NaN()
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r))
}
