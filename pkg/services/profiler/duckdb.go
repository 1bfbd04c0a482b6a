package profiler

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/rs/zerolog"
)

// DuckDB profiles through DuckDB's SUMMARIZE over read_csv_auto. It reports
// fewer statistics than the native engine but never holds the data in Go.
type DuckDB struct {
	db   *sql.DB
	opts Options
}

func NewDuckDB(db *sql.DB, opts Options) (*DuckDB, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &DuckDB{db: db, opts: opts.withDefaults()}, nil
}

type summarizeRow struct {
	name       string
	typ        string
	min, max   sql.NullString
	approxUniq int64
	avg, std   sql.NullString
	q25        sql.NullString
	q50        sql.NullString
	q75        sql.NullString
	count      int64
	nullPct    sql.NullFloat64
}

func (d *DuckDB) Profile(ctx context.Context, src Source) (*domain.Report, error) {
	logger := zerolog.Ctx(ctx).With().Str("engine", string(domain.EngineDuckDB)).Str("source", src.Name).Logger()

	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}
	rep := &domain.Report{
		Title:    d.opts.Title,
		Source:   name,
		Engine:   domain.EngineDuckDB,
		Analysis: domain.Analysis{Start: time.Now().UTC()},
	}
	source := d.tableExpr(src.Path)
	table := source
	if d.opts.MaxRows > 0 {
		table = fmt.Sprintf("(SELECT * FROM %s LIMIT %d)", source, d.opts.MaxRows)
	}

	rows, err := d.summarize(ctx, table)
	if err != nil {
		return nil, err
	}

	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+source).Scan(&rep.Table.Rows); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	rep.Table.Processed = rep.Table.Rows
	if d.opts.MaxRows > 0 && rep.Table.Rows > d.opts.MaxRows {
		rep.Table.Processed = d.opts.MaxRows
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("processed only %d/%d rows due to the row limit", rep.Table.Processed, rep.Table.Rows))
	}

	var distinctRows int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (SELECT DISTINCT * FROM `+table+`)`).Scan(&distinctRows); err != nil {
		return nil, fmt.Errorf("count distinct rows: %w", err)
	}
	rep.Table.Duplicates = rep.Table.Processed - distinctRows
	rep.Table.DuplicatesTested = true

	var numeric []string
	for _, r := range rows {
		v := d.variable(r)
		if v.Type == domain.VariableNumeric {
			numeric = append(numeric, v.Name)
		}
		rep.Variables = append(rep.Variables, v)
	}

	if rep.Head, err = d.sample(ctx, `SELECT * FROM `+table+` LIMIT ?`, d.opts.SampleRows); err != nil {
		return nil, err
	}
	if rep.Table.Processed > d.opts.SampleRows {
		rep.Tail, err = d.sample(ctx, `SELECT * FROM `+table+` OFFSET ?`, rep.Table.Processed-d.opts.SampleRows)
		if err != nil {
			return nil, err
		}
	} else {
		rep.Tail = rep.Head
	}

	if !d.opts.SkipCorrelations && len(numeric) > 1 {
		m, err := d.pearson(ctx, table, numeric)
		if err != nil {
			return nil, err
		}
		rep.Corr = []domain.CorrMatrix{m}
	}

	rep.Analysis.End = time.Now().UTC()
	finalize(rep, d.opts.Alerts)
	logger.Debug().Int("rows", rep.Table.Rows).Int("columns", rep.Table.Columns).Msg("profile computed")
	return rep, nil
}

func (d *DuckDB) tableExpr(path string) string {
	var delim string
	if d.opts.Delimiter != 0 {
		delim = ", delim = " + quoteLiteral(string(d.opts.Delimiter))
	}
	return fmt.Sprintf("read_csv_auto(%s, header = true%s)", quoteLiteral(path), delim)
}

func (d *DuckDB) summarize(ctx context.Context, table string) ([]summarizeRow, error) {
	query := `
		SELECT column_name, column_type, min, max, approx_unique, avg, std, q25, q50, q75, count,
		       CAST(null_percentage AS DOUBLE)
		FROM (SUMMARIZE SELECT * FROM ` + table + `)`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: summarize: %v", ErrNotCSV, err)
	}
	defer rows.Close()

	var out []summarizeRow
	for rows.Next() {
		var r summarizeRow
		if err := rows.Scan(&r.name, &r.typ, &r.min, &r.max, &r.approxUniq, &r.avg, &r.std,
			&r.q25, &r.q50, &r.q75, &r.count, &r.nullPct); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyDataset
	}
	return out, nil
}

func (d *DuckDB) variable(r summarizeRow) domain.Variable {
	v := domain.Variable{Name: r.name, Type: duckdbType(r.typ)}

	total := int(r.count)
	if r.nullPct.Valid {
		v.Missing = int(math.Round(float64(total) * r.nullPct.Float64 / 100))
		v.PMissing = r.nullPct.Float64 / 100
	}
	v.Count = total - v.Missing
	v.Distinct = min(int(r.approxUniq), v.Count)
	if v.Count > 0 {
		v.PDistinct = float64(v.Distinct) / float64(v.Count)
		v.IsUnique = v.Distinct == v.Count
	}

	switch v.Type {
	case domain.VariableNumeric:
		st := &domain.NumericStats{
			Mean: parseNull(r.avg),
			Std:  parseNull(r.std),
			Min:  parseNull(r.min),
			Max:  parseNull(r.max),
		}
		st.Variance = st.Std * st.Std
		st.Range = st.Max - st.Min
		if st.Mean != 0 {
			st.CV = st.Std / st.Mean
		}
		q25, q50, q75 := parseNull(r.q25), parseNull(r.q50), parseNull(r.q75)
		st.Quantiles = []domain.Quantile{{Q: 0.25, Value: q25}, {Q: 0.5, Value: q50}, {Q: 0.75, Value: q75}}
		st.IQR = q75 - q25
		v.Numeric = st
	case domain.VariableDateTime:
		v.DateTime = &domain.DateTimeStats{Min: parseNullTime(r.min), Max: parseNullTime(r.max)}
	case domain.VariableCategorical:
		if v.Count > 0 && v.Distinct > d.opts.Alerts.TextDistinctMin &&
			float64(v.Distinct)/float64(v.Count) > 0.5 {
			v.Type = domain.VariableText
		}
	}
	return v
}

func (d *DuckDB) sample(ctx context.Context, query string, arg int) ([][]string, error) {
	rows, err := d.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sample columns: %w", err)
	}

	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatCell(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DuckDB) pearson(ctx context.Context, table string, columns []string) (domain.CorrMatrix, error) {
	n := len(columns)
	m := domain.CorrMatrix{Method: CorrPearson, Columns: columns, Values: newMatrix(n)}

	var exprs []string
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
		for j := 0; j < i; j++ {
			exprs = append(exprs, fmt.Sprintf("corr(%s, %s)", quoteIdent(columns[i]), quoteIdent(columns[j])))
		}
	}

	vals := make([]sql.NullFloat64, len(exprs))
	ptrs := make([]any, len(exprs))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	query := `SELECT ` + strings.Join(exprs, ", ") + ` FROM ` + table
	if err := d.db.QueryRowContext(ctx, query).Scan(ptrs...); err != nil {
		return m, fmt.Errorf("correlations: %w", err)
	}

	k := 0
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			r := math.NaN()
			if vals[k].Valid {
				r = vals[k].Float64
			}
			m.Values[i][j], m.Values[j][i] = r, r
			k++
		}
	}
	return m, nil
}

func duckdbType(t string) domain.VariableType {
	t = strings.ToUpper(t)
	switch {
	case strings.HasPrefix(t, "DECIMAL"),
		t == "TINYINT", t == "SMALLINT", t == "INTEGER", t == "BIGINT", t == "HUGEINT",
		t == "UTINYINT", t == "USMALLINT", t == "UINTEGER", t == "UBIGINT",
		t == "FLOAT", t == "DOUBLE":
		return domain.VariableNumeric
	case t == "BOOLEAN":
		return domain.VariableBoolean
	case t == "DATE", strings.HasPrefix(t, "TIMESTAMP"), t == "TIME":
		return domain.VariableDateTime
	case t == "VARCHAR":
		return domain.VariableCategorical
	}
	return domain.VariableUnsupported
}

func parseNull(s sql.NullString) float64 {
	if !s.Valid {
		return 0
	}
	f, err := strconv.ParseFloat(s.String, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseNullTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	for _, l := range []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02", "15:04:05"} {
		if t, err := time.Parse(l, s.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
