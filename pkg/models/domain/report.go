package domain

import "time"

type VariableType string

const (
	VariableNumeric     VariableType = "Numeric"
	VariableCategorical VariableType = "Categorical"
	VariableBoolean     VariableType = "Boolean"
	VariableDateTime    VariableType = "DateTime"
	VariableText        VariableType = "Text"
	VariableUnsupported VariableType = "Unsupported"
)

type AlertType string

const (
	AlertConstant        AlertType = "CONSTANT"
	AlertUnique          AlertType = "UNIQUE"
	AlertMissing         AlertType = "MISSING"
	AlertZeros           AlertType = "ZEROS"
	AlertHighCorrelation AlertType = "HIGH_CORRELATION"
	AlertHighCardinality AlertType = "HIGH_CARDINALITY"
	AlertSkewed          AlertType = "SKEWED"
	AlertDuplicates      AlertType = "DUPLICATES"
	AlertEmpty           AlertType = "EMPTY"
)

// Report represents a complete profile of one tabular dataset
type Report struct {
	Title     string
	Source    string
	Engine    EngineType
	Analysis  Analysis
	Table     TableStats
	Variables []Variable
	Corr      []CorrMatrix
	Alerts    []Alert
	Head      [][]string
	Tail      [][]string
	Warnings  []string
}

// Analysis holds the time window of the profiling run
type Analysis struct {
	Start time.Time
	End   time.Time
}

func (a Analysis) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

type TableStats struct {
	Rows             int
	Processed        int
	Columns          int
	CellsMissing     int
	PCellsMissing    float64
	VarsWithMissing  int
	Duplicates       int
	PDuplicates      float64
	BytesRead        int64
	Types            map[VariableType]int
	DuplicatesTested bool
}

// Variable is the per-column profile
type Variable struct {
	Name      string
	Type      VariableType
	Count     int // non-missing
	Missing   int
	PMissing  float64
	Distinct  int
	PDistinct float64
	IsUnique  bool
	TopValues []ValueCount

	Numeric  *NumericStats
	Text     *TextStats
	DateTime *DateTimeStats
	Boolean  *BooleanStats
}

type ValueCount struct {
	Value string
	Count int
}

type NumericStats struct {
	Mean      float64
	Std       float64
	Variance  float64
	Min       float64
	Max       float64
	Range     float64
	Sum       float64
	Quantiles []Quantile
	IQR       float64
	CV        float64
	Skewness  float64
	Kurtosis  float64
	MAD       float64
	Zeros     int
	PZeros    float64
	Negative  int
	Infinite  int
	Histogram *Histogram
}

type Quantile struct {
	Q     float64
	Value float64
}

// Histogram has len(Edges) == len(Counts)+1
type Histogram struct {
	Counts []int
	Edges  []float64
}

type TextStats struct {
	MinLength  int
	MaxLength  int
	MeanLength float64
	Examples   []string
}

type DateTimeStats struct {
	Min time.Time
	Max time.Time
}

func (d DateTimeStats) Range() time.Duration {
	return d.Max.Sub(d.Min)
}

type BooleanStats struct {
	True  int
	False int
}

// CorrMatrix holds a symmetric correlation matrix across numeric columns
type CorrMatrix struct {
	Method  string
	Columns []string
	Values  [][]float64
}

type Alert struct {
	Type     AlertType
	Column   string
	Message  string
	Value    float64
	Relation string
}
