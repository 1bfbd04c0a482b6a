package profiler

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

const (
	// ctxCheckEvery is how many rows pass between cancellation checks.
	ctxCheckEvery = 4096
	maxExamples   = 3
)

// Native is the streaming CSV profiler. It reads the file once, keeping
// per-column accumulators plus the numeric cells needed for quantiles and
// correlations.
type Native struct {
	opts Options
}

func NewNative(opts Options) *Native {
	return &Native{opts: opts.withDefaults()}
}

type column struct {
	name    string
	missing int
	count   int
	counts  map[string]int

	maybeNumeric bool
	maybeBool    bool
	maybeDate    bool

	// nums keeps one value per processed row, NaN when missing, while the
	// column may still turn out numeric.
	nums []float64

	trues, falses int

	minTime, maxTime time.Time

	minLen, maxLen, sumLen int
	examples               []string
}

func newColumn(name string) *column {
	return &column{
		name:         name,
		counts:       make(map[string]int),
		maybeNumeric: true,
		maybeBool:    true,
		maybeDate:    true,
		minLen:       math.MaxInt,
	}
}

func (c *column) add(v string) {
	if isMissing(v) {
		c.missing++
		if c.maybeNumeric {
			c.nums = append(c.nums, math.NaN())
		}
		return
	}
	c.count++
	c.counts[v]++

	l := utf8.RuneCountInString(v)
	c.sumLen += l
	c.minLen = min(c.minLen, l)
	c.maxLen = max(c.maxLen, l)
	if len(c.examples) < maxExamples && c.counts[v] == 1 {
		c.examples = append(c.examples, v)
	}

	if c.maybeBool {
		if b, ok := parseBool(v); ok {
			if b {
				c.trues++
			} else {
				c.falses++
			}
		} else {
			c.maybeBool = false
		}
	}

	numeric := false
	if c.maybeNumeric {
		if x, ok := parseNumber(v); ok {
			c.nums = append(c.nums, x)
			numeric = true
		} else {
			c.maybeNumeric = false
			c.nums = nil
		}
	}

	if c.maybeDate {
		if numeric {
			c.maybeDate = false
		} else if t, ok := parseTime(v); ok {
			if c.minTime.IsZero() || t.Before(c.minTime) {
				c.minTime = t
			}
			if t.After(c.maxTime) {
				c.maxTime = t
			}
		} else {
			c.maybeDate = false
		}
	}
}

func (c *column) kind(th AlertThresholds) domain.VariableType {
	switch {
	case c.count == 0:
		return domain.VariableUnsupported
	case c.maybeBool:
		return domain.VariableBoolean
	case c.maybeNumeric:
		return domain.VariableNumeric
	case c.maybeDate:
		return domain.VariableDateTime
	}
	meanLen := float64(c.sumLen) / float64(c.count)
	distinct := len(c.counts)
	if meanLen > th.TextAvgLength ||
		(distinct > th.TextDistinctMin && float64(distinct)/float64(c.count) > 0.5) {
		return domain.VariableText
	}
	return domain.VariableCategorical
}

func (n *Native) Profile(ctx context.Context, src Source) (*domain.Report, error) {
	logger := zerolog.Ctx(ctx).With().Str("engine", string(domain.EngineNative)).Str("source", src.Name).Logger()

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}

	rep, err := n.profileReader(ctx, name, f)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("rows", rep.Table.Rows).
		Int("columns", rep.Table.Columns).
		Dur("took", rep.Analysis.Duration()).
		Msg("profile computed")
	return rep, nil
}

func (n *Native) profileReader(ctx context.Context, name string, r io.Reader) (*domain.Report, error) {
	opts := n.opts
	rep := &domain.Report{
		Title:    opts.Title,
		Source:   name,
		Engine:   domain.EngineNative,
		Analysis: domain.Analysis{Start: time.Now().UTC()},
	}

	counter := &countingReader{r: r}
	br := bufio.NewReaderSize(counter, 64*1024)
	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrNotCSV, err)
	}

	names := columnNames(header)
	ncol := len(names)
	cols := make([]*column, ncol)
	for i, nm := range names {
		cols[i] = newColumn(nm)
	}

	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}

	var (
		rowHashes = make(map[uint64]struct{})
		hashBuf   []byte
		tail      = newRing(opts.SampleRows)
		wide      int
	)

	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read row %d: %v", ErrNotCSV, rep.Table.Rows+1, err)
		}
		rep.Table.Rows++
		if rep.Table.Rows%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if rep.Table.Processed >= maxRows {
			continue
		}
		rep.Table.Processed++

		if len(rec) > ncol {
			wide++
		}
		row := make([]string, ncol)
		copy(row, rec)

		hashBuf = hashBuf[:0]
		for j := 0; j < ncol; j++ {
			v := strings.TrimSpace(row[j])
			row[j] = v
			cols[j].add(v)
			hashBuf = append(hashBuf, v...)
			hashBuf = append(hashBuf, 0x1f)
		}
		h := xxh3.Hash(hashBuf)
		if _, dup := rowHashes[h]; dup {
			rep.Table.Duplicates++
		} else {
			rowHashes[h] = struct{}{}
		}

		if len(rep.Head) < opts.SampleRows {
			rep.Head = append(rep.Head, row)
		}
		tail.push(row)
	}
	rep.Table.DuplicatesTested = true
	rep.Table.BytesRead = counter.n
	rep.Tail = tail.items()

	if rep.Table.Processed < rep.Table.Rows {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("processed only %d/%d rows due to the row limit", rep.Table.Processed, rep.Table.Rows))
	}
	if wide > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("%d rows had more fields than the header; extra fields were ignored", wide))
	}

	var (
		numNames []string
		numCols  [][]float64
	)
	rep.Variables = make([]domain.Variable, 0, ncol)
	for _, c := range cols {
		v := n.summarize(c)
		if v.Type == domain.VariableNumeric {
			numNames = append(numNames, c.name)
			numCols = append(numCols, c.nums)
		}
		rep.Variables = append(rep.Variables, v)
	}
	if !opts.SkipCorrelations {
		rep.Corr = correlate(numNames, numCols)
	}

	rep.Analysis.End = time.Now().UTC()
	finalize(rep, opts.Alerts)
	return rep, nil
}

func (n *Native) summarize(c *column) domain.Variable {
	opts := n.opts
	v := domain.Variable{
		Name:    c.name,
		Type:    c.kind(opts.Alerts),
		Count:   c.count,
		Missing: c.missing,
	}
	if total := c.count + c.missing; total > 0 {
		v.PMissing = float64(c.missing) / float64(total)
	}

	switch v.Type {
	case domain.VariableNumeric:
		values := make([]float64, 0, c.count)
		for _, x := range c.nums {
			if !math.IsNaN(x) {
				values = append(values, x)
			}
		}
		v.Numeric = describe(values, opts.HistogramBins)
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		v.Distinct, v.TopValues = numericValueCounts(sorted, opts.TopValues)
	case domain.VariableBoolean:
		v.Boolean = &domain.BooleanStats{True: c.trues, False: c.falses}
		v.Distinct = len(c.counts)
		v.TopValues = topValues(c.counts, opts.TopValues)
	case domain.VariableDateTime:
		v.DateTime = &domain.DateTimeStats{Min: c.minTime, Max: c.maxTime}
		v.Distinct = len(c.counts)
		v.TopValues = topValues(c.counts, opts.TopValues)
	case domain.VariableCategorical, domain.VariableText:
		v.Distinct = len(c.counts)
		v.TopValues = topValues(c.counts, opts.TopValues)
		v.Text = &domain.TextStats{
			MinLength:  c.minLen,
			MaxLength:  c.maxLen,
			MeanLength: float64(c.sumLen) / float64(c.count),
			Examples:   c.examples,
		}
	}

	if c.count > 0 {
		v.PDistinct = float64(v.Distinct) / float64(c.count)
		v.IsUnique = v.Distinct == c.count
	}
	return v
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ring keeps the last size rows.
type ring struct {
	buf  [][]string
	next int
	full bool
}

func newRing(size int) *ring {
	return &ring{buf: make([][]string, size)}
}

func (r *ring) push(row []string) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = row
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) items() [][]string {
	if !r.full {
		return append([][]string(nil), r.buf[:r.next]...)
	}
	out := make([][]string, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
