package profiler

import (
	"math"
	"sort"
	"strconv"

	"github.com/de-tools/data-profiler/pkg/models/domain"
)

var reportedQuantiles = []float64{0.05, 0.25, 0.5, 0.75, 0.95}

// quantile uses linear interpolation between closest ranks on sorted input.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// describe computes descriptive statistics. values holds every non-missing
// numeric value including infinities; moments use the finite ones only.
func describe(values []float64, bins int) *domain.NumericStats {
	st := &domain.NumericStats{}

	finite := make([]float64, 0, len(values))
	for _, v := range values {
		switch {
		case math.IsInf(v, 0):
			st.Infinite++
		default:
			finite = append(finite, v)
		}
		if v == 0 {
			st.Zeros++
		}
		if v < 0 {
			st.Negative++
		}
	}
	if len(values) > 0 {
		st.PZeros = float64(st.Zeros) / float64(len(values))
	}
	if len(finite) == 0 {
		return st
	}
	sort.Float64s(finite)

	n := float64(len(finite))
	var sum float64
	for _, v := range finite {
		sum += v
	}
	mean := sum / n

	var m2, m3, m4 float64
	for _, v := range finite {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}

	st.Sum = sum
	st.Mean = mean
	st.Min = finite[0]
	st.Max = finite[len(finite)-1]
	st.Range = st.Max - st.Min
	if n > 1 {
		st.Variance = m2 / (n - 1)
		st.Std = math.Sqrt(st.Variance)
	}
	if mean != 0 {
		st.CV = st.Std / mean
	}

	// sample skewness (G1) and excess kurtosis (G2)
	if m2 > 0 {
		pm2, pm3, pm4 := m2/n, m3/n, m4/n
		if n > 2 {
			g1 := pm3 / math.Pow(pm2, 1.5)
			st.Skewness = math.Sqrt(n*(n-1)) / (n - 2) * g1
		}
		if n > 3 {
			g2 := pm4/(pm2*pm2) - 3
			st.Kurtosis = (n - 1) / ((n - 2) * (n - 3)) * ((n+1)*g2 + 6)
		}
	}

	st.Quantiles = make([]domain.Quantile, 0, len(reportedQuantiles))
	for _, q := range reportedQuantiles {
		st.Quantiles = append(st.Quantiles, domain.Quantile{Q: q, Value: quantile(finite, q)})
	}
	st.IQR = quantile(finite, 0.75) - quantile(finite, 0.25)
	st.MAD = medianAbsDeviation(finite)
	st.Histogram = histogram(finite, bins)
	return st
}

// medianAbsDeviation expects sorted input.
func medianAbsDeviation(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	median := quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return quantile(dev, 0.5)
}

// histogram bins sorted finite values into equal-width bins. The bin count
// follows Sturges' rule capped at maxBins; the last bin is closed.
func histogram(sorted []float64, maxBins int) *domain.Histogram {
	if len(sorted) == 0 {
		return nil
	}
	bins := int(math.Ceil(math.Log2(float64(len(sorted))))) + 1
	if maxBins > 0 && bins > maxBins {
		bins = maxBins
	}
	if bins < 1 {
		bins = 1
	}

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	// scaled before subtracting so spans wider than MaxFloat64 stay finite
	width := hi/float64(bins) - lo/float64(bins)

	h := &domain.Histogram{
		Counts: make([]int, bins),
		Edges:  make([]float64, bins+1),
	}
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[bins] = hi

	for _, v := range sorted {
		idx := int(math.Floor(v/width - lo/width))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Counts[idx]++
	}
	return h
}

// numericValueCounts counts distinct values of sorted input and returns the
// number of distinct values plus the most frequent ones.
func numericValueCounts(sorted []float64, top int) (int, []domain.ValueCount) {
	var (
		counts   []domain.ValueCount
		distinct int
	)
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		distinct++
		counts = append(counts, domain.ValueCount{
			Value: strconv.FormatFloat(sorted[i], 'g', -1, 64),
			Count: j - i,
		})
		i = j
	}
	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].Count > counts[b].Count
	})
	if len(counts) > top {
		counts = counts[:top]
	}
	return distinct, counts
}

func topValues(counts map[string]int, top int) []domain.ValueCount {
	out := make([]domain.ValueCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, domain.ValueCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > top {
		out = out[:top]
	}
	return out
}

// ranks assigns average ranks (1-based) with ties sharing their mean rank.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}
