package profiler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/data-profiler/pkg/models/domain"
)

const DefaultTitle = "Data Report"

var (
	ErrEmptyDataset = errors.New("dataset has no header row")
	ErrNotCSV       = errors.New("source is not valid CSV")
)

// Source identifies the tabular data to profile.
type Source struct {
	Name string
	Path string
}

// Profiler turns tabular data into a structured report.
type Profiler interface {
	Profile(ctx context.Context, src Source) (*domain.Report, error)
}

// Options controls profiling behavior.
type Options struct {
	Title string
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows is the number of head and tail rows kept.
	SampleRows int
	// HistogramBins caps histogram bins; below the cap Sturges' rule applies.
	HistogramBins    int
	TopValues        int
	SkipCorrelations bool
	// Delimiter for CSV. If 0, sniffed from the header line.
	Delimiter rune
	Alerts    AlertThresholds
}

// AlertThresholds are the limits alerts fire at. Zero fields take the
// default value.
type AlertThresholds struct {
	Missing         float64
	Zeros           float64
	Correlation     float64
	Cardinality     int
	Skewness        float64
	TextAvgLength   float64
	TextDistinctMin int
}

func DefaultOptions() Options {
	return Options{
		Title:         DefaultTitle,
		SampleRows:    10,
		HistogramBins: 50,
		TopValues:     10,
		Alerts: AlertThresholds{
			Missing:         0.2,
			Zeros:           0.1,
			Correlation:     0.9,
			Cardinality:     50,
			Skewness:        20,
			TextAvgLength:   40,
			TextDistinctMin: 50,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.SampleRows <= 0 {
		o.SampleRows = d.SampleRows
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = d.HistogramBins
	}
	if o.TopValues <= 0 {
		o.TopValues = d.TopValues
	}
	o.Alerts = o.Alerts.withDefaults(d.Alerts)
	return o
}

func (a AlertThresholds) withDefaults(d AlertThresholds) AlertThresholds {
	if a.Missing <= 0 {
		a.Missing = d.Missing
	}
	if a.Zeros <= 0 {
		a.Zeros = d.Zeros
	}
	if a.Correlation <= 0 {
		a.Correlation = d.Correlation
	}
	if a.Cardinality <= 0 {
		a.Cardinality = d.Cardinality
	}
	if a.Skewness <= 0 {
		a.Skewness = d.Skewness
	}
	if a.TextAvgLength <= 0 {
		a.TextAvgLength = d.TextAvgLength
	}
	if a.TextDistinctMin <= 0 {
		a.TextDistinctMin = d.TextDistinctMin
	}
	return a
}

// New builds the profiler for engine. The duckdb engine needs db; the native
// engine ignores it.
func New(engine domain.EngineType, db *sql.DB, opts Options) (Profiler, error) {
	switch engine {
	case domain.EngineNative, "":
		return NewNative(opts), nil
	case domain.EngineDuckDB:
		return NewDuckDB(db, opts)
	}
	return nil, fmt.Errorf("unsupported profiler engine: %s", engine)
}
