package adapters

import (
	"math"
	"strconv"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/api"
	"github.com/de-tools/data-profiler/pkg/models/domain"
)

const PackageName = "data-profiler"

// MapReportDomainToApi builds the JSON document of a report. Non-finite
// numbers become nulls or are omitted.
func MapReportDomainToApi(r *domain.Report, version string) api.Report {
	res := api.Report{
		Title:  r.Title,
		Source: r.Source,
		Analysis: api.Analysis{
			Title:     r.Title,
			DateStart: r.Analysis.Start,
			DateEnd:   r.Analysis.End,
			Duration:  r.Analysis.Duration().Seconds(),
		},
		Table:        MapTableStatsDomainToApi(r.Table),
		Variables:    make(map[string]api.Variable, len(r.Variables)),
		Order:        make([]string, 0, len(r.Variables)),
		Correlations: make(map[string]api.Corr, len(r.Corr)),
		Missing:      make(map[string]api.Missing, len(r.Variables)),
		Alerts:       make([]api.Alert, 0, len(r.Alerts)),
		Sample: api.Sample{
			Head: nonNilRows(r.Head),
			Tail: nonNilRows(r.Tail),
		},
		Warnings: r.Warnings,
		Package: api.Package{
			Name:    PackageName,
			Version: version,
			Engine:  string(r.Engine),
		},
	}

	for _, v := range r.Variables {
		res.Order = append(res.Order, v.Name)
		res.Variables[v.Name] = MapVariableDomainToApi(v)
		res.Missing[v.Name] = api.Missing{NMissing: v.Missing, PMissing: finiteOrZero(v.PMissing)}
	}
	res.Sample.Columns = res.Order

	for _, m := range r.Corr {
		res.Correlations[m.Method] = MapCorrDomainToApi(m)
	}
	for _, a := range r.Alerts {
		res.Alerts = append(res.Alerts, MapAlertDomainToApi(a))
	}
	return res
}

func MapTableStatsDomainToApi(t domain.TableStats) api.Table {
	res := api.Table{
		N:             t.Rows,
		NProcessed:    t.Processed,
		NVar:          t.Columns,
		NCellsMissing: t.CellsMissing,
		PCellsMissing: finiteOrZero(t.PCellsMissing),
		NVarsWithMiss: t.VarsWithMissing,
		MemorySize:    t.BytesRead,
		Types:         make(map[string]int, len(t.Types)),
	}
	if t.DuplicatesTested {
		n := t.Duplicates
		res.NDuplicates = &n
		res.PDuplicates = finite(t.PDuplicates)
	}
	for k, v := range t.Types {
		res.Types[string(k)] = v
	}
	return res
}

func MapVariableDomainToApi(v domain.Variable) api.Variable {
	res := api.Variable{
		Type:      string(v.Type),
		Count:     v.Count,
		NMissing:  v.Missing,
		PMissing:  finiteOrZero(v.PMissing),
		NDistinct: v.Distinct,
		PDistinct: finiteOrZero(v.PDistinct),
		IsUnique:  v.IsUnique,
	}
	for _, vc := range v.TopValues {
		res.TopValues = append(res.TopValues, api.ValueCount{Value: vc.Value, Count: vc.Count})
	}

	if n := v.Numeric; n != nil {
		res.Mean = finite(n.Mean)
		res.Std = finite(n.Std)
		res.Variance = finite(n.Variance)
		res.Min = finite(n.Min)
		res.Max = finite(n.Max)
		res.Range = finite(n.Range)
		res.Sum = finite(n.Sum)
		res.IQR = finite(n.IQR)
		res.CV = finite(n.CV)
		res.Skewness = finite(n.Skewness)
		res.Kurtosis = finite(n.Kurtosis)
		res.MAD = finite(n.MAD)
		res.NZeros = intPtr(n.Zeros)
		res.PZeros = finite(n.PZeros)
		res.NNegative = intPtr(n.Negative)
		res.NInfinite = intPtr(n.Infinite)
		if len(n.Quantiles) > 0 {
			res.Quantiles = make(map[string]float64, len(n.Quantiles))
			for _, q := range n.Quantiles {
				if isFinite(q.Value) {
					res.Quantiles[QuantileLabel(q.Q)] = q.Value
				}
			}
		}
		if h := n.Histogram; h != nil && allFinite(h.Edges) {
			res.Histogram = &api.Histogram{Counts: h.Counts, BinEdges: h.Edges}
		}
	}

	if t := v.Text; t != nil {
		res.MinLength = intPtr(t.MinLength)
		res.MaxLength = intPtr(t.MaxLength)
		res.MeanLength = finite(t.MeanLength)
		res.Examples = t.Examples
	}

	if d := v.DateTime; d != nil {
		res.MinDate = timePtr(d.Min)
		res.MaxDate = timePtr(d.Max)
	}

	if b := v.Boolean; b != nil {
		res.NTrue = intPtr(b.True)
		res.NFalse = intPtr(b.False)
	}
	return res
}

func MapCorrDomainToApi(m domain.CorrMatrix) api.Corr {
	res := api.Corr{
		Columns: m.Columns,
		Matrix:  make([][]*float64, len(m.Values)),
	}
	for i, row := range m.Values {
		res.Matrix[i] = make([]*float64, len(row))
		for j, v := range row {
			res.Matrix[i][j] = finite(v)
		}
	}
	return res
}

func MapAlertDomainToApi(a domain.Alert) api.Alert {
	return api.Alert{
		Type:    string(a.Type),
		Column:  a.Column,
		Message: a.Message,
		Value:   finiteOrZero(a.Value),
		Related: a.Relation,
	}
}

// QuantileLabel renders 0.25 as "25%".
func QuantileLabel(q float64) string {
	return strconv.FormatFloat(q*100, 'f', -1, 64) + "%"
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func allFinite(fs []float64) bool {
	for _, f := range fs {
		if !isFinite(f) {
			return false
		}
	}
	return true
}

func finite(f float64) *float64 {
	if !isFinite(f) {
		return nil
	}
	return &f
}

func finiteOrZero(f float64) float64 {
	if !isFinite(f) {
		return 0
	}
	return f
}

func intPtr(i int) *int {
	return &i
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNilRows(rows [][]string) [][]string {
	if rows == nil {
		return [][]string{}
	}
	return rows
}
