package api

import "time"

type Report struct {
	Title        string              `json:"title"`
	Source       string              `json:"source"`
	Analysis     Analysis            `json:"analysis"`
	Table        Table               `json:"table"`
	Variables    map[string]Variable `json:"variables"`
	Order        []string            `json:"variable_order"`
	Correlations map[string]Corr     `json:"correlations,omitempty"`
	Missing      map[string]Missing  `json:"missing"`
	Alerts       []Alert             `json:"alerts"`
	Sample       Sample              `json:"sample"`
	Warnings     []string            `json:"warnings,omitempty"`
	Package      Package             `json:"package"`
}

type Analysis struct {
	Title     string    `json:"title"`
	DateStart time.Time `json:"date_start"`
	DateEnd   time.Time `json:"date_end"`
	Duration  float64   `json:"duration_seconds"`
}

type Table struct {
	N             int            `json:"n"`
	NProcessed    int            `json:"n_processed"`
	NVar          int            `json:"n_var"`
	NCellsMissing int            `json:"n_cells_missing"`
	PCellsMissing float64        `json:"p_cells_missing"`
	NVarsWithMiss int            `json:"n_vars_with_missing"`
	NDuplicates   *int           `json:"n_duplicates,omitempty"`
	PDuplicates   *float64       `json:"p_duplicates,omitempty"`
	MemorySize    int64          `json:"memory_size"`
	Types         map[string]int `json:"types"`
}

type Variable struct {
	Type      string       `json:"type"`
	Count     int          `json:"count"`
	NMissing  int          `json:"n_missing"`
	PMissing  float64      `json:"p_missing"`
	NDistinct int          `json:"n_distinct"`
	PDistinct float64      `json:"p_distinct"`
	IsUnique  bool         `json:"is_unique"`
	TopValues []ValueCount `json:"value_counts,omitempty"`

	Mean      *float64           `json:"mean,omitempty"`
	Std       *float64           `json:"std,omitempty"`
	Variance  *float64           `json:"variance,omitempty"`
	Min       *float64           `json:"min,omitempty"`
	Max       *float64           `json:"max,omitempty"`
	Range     *float64           `json:"range,omitempty"`
	Sum       *float64           `json:"sum,omitempty"`
	Quantiles map[string]float64 `json:"quantiles,omitempty"`
	IQR       *float64           `json:"iqr,omitempty"`
	CV        *float64           `json:"cv,omitempty"`
	Skewness  *float64           `json:"skewness,omitempty"`
	Kurtosis  *float64           `json:"kurtosis,omitempty"`
	MAD       *float64           `json:"mad,omitempty"`
	NZeros    *int               `json:"n_zeros,omitempty"`
	PZeros    *float64           `json:"p_zeros,omitempty"`
	NNegative *int               `json:"n_negative,omitempty"`
	NInfinite *int               `json:"n_infinite,omitempty"`
	Histogram *Histogram         `json:"histogram,omitempty"`

	MinLength  *int     `json:"min_length,omitempty"`
	MaxLength  *int     `json:"max_length,omitempty"`
	MeanLength *float64 `json:"mean_length,omitempty"`
	Examples   []string `json:"examples,omitempty"`

	MinDate *time.Time `json:"min_date,omitempty"`
	MaxDate *time.Time `json:"max_date,omitempty"`

	NTrue  *int `json:"n_true,omitempty"`
	NFalse *int `json:"n_false,omitempty"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type Histogram struct {
	Counts   []int     `json:"counts"`
	BinEdges []float64 `json:"bin_edges"`
}

type Corr struct {
	Columns []string     `json:"columns"`
	Matrix  [][]*float64 `json:"matrix"`
}

type Missing struct {
	NMissing int     `json:"n_missing"`
	PMissing float64 `json:"p_missing"`
}

type Alert struct {
	Type    string  `json:"alert_type"`
	Column  string  `json:"column,omitempty"`
	Message string  `json:"message"`
	Value   float64 `json:"value,omitempty"`
	Related string  `json:"related,omitempty"`
}

type Sample struct {
	Columns []string   `json:"columns"`
	Head    [][]string `json:"head"`
	Tail    [][]string `json:"tail"`
}

type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Engine  string `json:"engine"`
}
