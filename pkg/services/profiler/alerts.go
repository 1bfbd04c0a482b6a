package profiler

import (
	"fmt"
	"math"

	"github.com/de-tools/data-profiler/pkg/models/domain"
)

// finalize fills the fields every engine derives the same way: type counts,
// missing cell totals and alerts.
func finalize(rep *domain.Report, th AlertThresholds) {
	rep.Table.Columns = len(rep.Variables)
	rep.Table.Types = make(map[domain.VariableType]int)
	rep.Table.CellsMissing = 0
	rep.Table.VarsWithMissing = 0
	for _, v := range rep.Variables {
		rep.Table.Types[v.Type]++
		rep.Table.CellsMissing += v.Missing
		if v.Missing > 0 {
			rep.Table.VarsWithMissing++
		}
	}
	if cells := rep.Table.Processed * rep.Table.Columns; cells > 0 {
		rep.Table.PCellsMissing = float64(rep.Table.CellsMissing) / float64(cells)
	}
	if rep.Table.Processed > 0 {
		rep.Table.PDuplicates = float64(rep.Table.Duplicates) / float64(rep.Table.Processed)
	}
	rep.Alerts = alerts(rep, th)
}

func alerts(rep *domain.Report, th AlertThresholds) []domain.Alert {
	var out []domain.Alert

	if rep.Table.Processed == 0 {
		out = append(out, domain.Alert{
			Type:    domain.AlertEmpty,
			Message: "Dataset has no rows",
		})
		return out
	}
	if rep.Table.DuplicatesTested && rep.Table.Duplicates > 0 {
		out = append(out, domain.Alert{
			Type:    domain.AlertDuplicates,
			Message: fmt.Sprintf("Dataset has %d (%.1f%%) duplicate rows", rep.Table.Duplicates, rep.Table.PDuplicates*100),
			Value:   rep.Table.PDuplicates,
		})
	}

	for _, v := range rep.Variables {
		if v.Count > 0 && v.Distinct == 1 {
			out = append(out, domain.Alert{
				Type:    domain.AlertConstant,
				Column:  v.Name,
				Message: fmt.Sprintf("%s has constant value %q", v.Name, firstValue(v)),
			})
		}
		if v.IsUnique && v.Count > 1 {
			out = append(out, domain.Alert{
				Type:    domain.AlertUnique,
				Column:  v.Name,
				Message: fmt.Sprintf("%s has unique values", v.Name),
			})
		}
		if v.PMissing >= th.Missing && v.Missing > 0 {
			out = append(out, domain.Alert{
				Type:    domain.AlertMissing,
				Column:  v.Name,
				Message: fmt.Sprintf("%s has %d (%.1f%%) missing values", v.Name, v.Missing, v.PMissing*100),
				Value:   v.PMissing,
			})
		}
		if v.Type == domain.VariableCategorical && v.Distinct > th.Cardinality {
			out = append(out, domain.Alert{
				Type:    domain.AlertHighCardinality,
				Column:  v.Name,
				Message: fmt.Sprintf("%s has a high cardinality: %d distinct values", v.Name, v.Distinct),
				Value:   float64(v.Distinct),
			})
		}
		if v.Numeric != nil {
			if v.Numeric.PZeros >= th.Zeros && v.Numeric.Zeros > 0 {
				out = append(out, domain.Alert{
					Type:    domain.AlertZeros,
					Column:  v.Name,
					Message: fmt.Sprintf("%s has %d (%.1f%%) zeros", v.Name, v.Numeric.Zeros, v.Numeric.PZeros*100),
					Value:   v.Numeric.PZeros,
				})
			}
			if math.Abs(v.Numeric.Skewness) > th.Skewness {
				out = append(out, domain.Alert{
					Type:    domain.AlertSkewed,
					Column:  v.Name,
					Message: fmt.Sprintf("%s is highly skewed (γ1 = %.2f)", v.Name, v.Numeric.Skewness),
					Value:   v.Numeric.Skewness,
				})
			}
		}
	}

	for _, m := range rep.Corr {
		if m.Method != CorrPearson {
			continue
		}
		for i := range m.Columns {
			for j := 0; j < i; j++ {
				r := m.Values[i][j]
				if math.IsNaN(r) || math.Abs(r) < th.Correlation {
					continue
				}
				out = append(out, domain.Alert{
					Type:     domain.AlertHighCorrelation,
					Column:   m.Columns[j],
					Relation: m.Columns[i],
					Message:  fmt.Sprintf("%s is highly correlated with %s (r = %.3f)", m.Columns[j], m.Columns[i], r),
					Value:    r,
				})
			}
		}
	}
	return out
}

func firstValue(v domain.Variable) string {
	if len(v.TopValues) > 0 {
		return v.TopValues[0].Value
	}
	return ""
}
