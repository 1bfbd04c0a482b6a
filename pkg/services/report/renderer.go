package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/de-tools/data-profiler/pkg/adapters"
	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/dustin/go-humanize"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer writes a report in one output format.
type Renderer interface {
	Render(w io.Writer, rep *domain.Report) error
}

// HTMLRenderer produces a self-contained HTML page.
type HTMLRenderer struct {
	tmpl    *template.Template
	version string
}

func NewHTMLRenderer(version string) (*HTMLRenderer, error) {
	tmpl, err := template.New("report.html.tmpl").Funcs(funcMap()).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl, version: version}, nil
}

type htmlView struct {
	*domain.Report
	Columns []string
	Version string
	Package string
}

func (r *HTMLRenderer) Render(w io.Writer, rep *domain.Report) error {
	view := htmlView{
		Report:  rep,
		Version: r.version,
		Package: adapters.PackageName,
	}
	for _, v := range rep.Variables {
		view.Columns = append(view.Columns, v.Name)
	}
	if err := r.tmpl.Execute(w, view); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// JSONRenderer produces the indented JSON document.
type JSONRenderer struct {
	version string
}

func NewJSONRenderer(version string) *JSONRenderer {
	return &JSONRenderer{version: version}
}

func (r *JSONRenderer) Render(w io.Writer, rep *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(adapters.MapReportDomainToApi(rep, r.version)); err != nil {
		return fmt.Errorf("render json: %w", err)
	}
	return nil
}

type bar struct {
	Height float64
	Count  int
	From   float64
	To     float64
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"bytes": func(n int64) string {
			if n < 0 {
				n = 0
			}
			return humanize.IBytes(uint64(n))
		},
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"pct":      formatPercent,
		"num":      formatNumber,
		"quantile": adapters.QuantileLabel,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "n/a"
			}
			return t.Format("2006-01-02 15:04:05")
		},
		"duration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"bars": histogramBars,
		"corrColor": func(r float64) template.CSS {
			if math.IsNaN(r) {
				return "#eee"
			}
			alpha := math.Min(1, math.Abs(r))
			if r >= 0 {
				return template.CSS(fmt.Sprintf("rgba(49, 130, 189, %.2f)", alpha))
			}
			return template.CSS(fmt.Sprintf("rgba(222, 45, 38, %.2f)", alpha))
		},
		"barWidth": func(p float64) string {
			return fmt.Sprintf("%.1f", math.Max(0, math.Min(100, p*100)))
		},
	}
}

func formatPercent(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", p*100)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "n/a"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return humanize.Comma(int64(f))
	case math.Abs(f) < 1e-3 || math.Abs(f) >= 1e15:
		return fmt.Sprintf("%.4g", f)
	}
	return humanize.CommafWithDigits(f, 4)
}

func histogramBars(h *domain.Histogram) []bar {
	if h == nil || len(h.Counts) == 0 {
		return nil
	}
	peak := 0
	for _, c := range h.Counts {
		peak = max(peak, c)
	}
	bars := make([]bar, len(h.Counts))
	for i, c := range h.Counts {
		bars[i] = bar{Count: c, From: h.Edges[i], To: h.Edges[i+1]}
		if peak > 0 {
			bars[i].Height = float64(c) / float64(peak) * 100
		}
	}
	return bars
}
