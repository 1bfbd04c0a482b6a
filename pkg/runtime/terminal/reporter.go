package terminal

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
)

// Reporter prints a Markdown summary of a profile to the console
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new console reporter
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

func (c *Reporter) Handle(rep *domain.Report, files ...string) error {
	md := markdown.NewMarkdown(c.writer)

	md.H1(rep.Title)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   overviewRows(rep),
	})
	md.PlainText("")

	md.H2("Variables")
	md.PlainText("")
	rows := make([][]string, 0, len(rep.Variables))
	for _, v := range rep.Variables {
		rows = append(rows, []string{
			v.Name,
			string(v.Type),
			humanize.Comma(int64(v.Distinct)),
			fmt.Sprintf("%s (%.1f%%)", humanize.Comma(int64(v.Missing)), v.PMissing*100),
			summary(v),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Name", "Type", "Distinct", "Missing", "Summary"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("Alerts")
	md.PlainText("")
	if len(rep.Alerts) == 0 {
		md.Tip("No alerts.")
	} else {
		items := make([]string, 0, len(rep.Alerts))
		for _, a := range rep.Alerts {
			items = append(items, fmt.Sprintf("**%s** %s", a.Type, a.Message))
		}
		md.BulletList(items...)
	}
	md.PlainText("")

	for _, w := range rep.Warnings {
		md.Warningf("%s", w)
		md.PlainText("")
	}

	if len(files) > 0 {
		md.H2("Files")
		md.PlainText("")
		md.BulletList(files...)
		md.PlainText("")
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func overviewRows(rep *domain.Report) [][]string {
	rows := [][]string{
		{"Source", "`" + rep.Source + "`"},
		{"Engine", string(rep.Engine)},
		{"Rows", humanize.Comma(int64(rep.Table.Rows))},
		{"Columns", strconv.Itoa(rep.Table.Columns)},
		{"Missing cells", fmt.Sprintf("%s (%.1f%%)", humanize.Comma(int64(rep.Table.CellsMissing)), rep.Table.PCellsMissing*100)},
	}
	if rep.Table.DuplicatesTested {
		rows = append(rows, []string{"Duplicate rows", fmt.Sprintf("%s (%.1f%%)",
			humanize.Comma(int64(rep.Table.Duplicates)), rep.Table.PDuplicates*100)})
	}
	if rep.Table.BytesRead > 0 {
		rows = append(rows, []string{"Size", humanize.IBytes(uint64(rep.Table.BytesRead))})
	}
	rows = append(rows, []string{"Took", rep.Analysis.Duration().String()})
	return rows
}

func summary(v domain.Variable) string {
	switch {
	case v.Numeric != nil:
		return fmt.Sprintf("mean %.4g, min %.4g, max %.4g", v.Numeric.Mean, v.Numeric.Min, v.Numeric.Max)
	case v.Boolean != nil:
		return fmt.Sprintf("%d true, %d false", v.Boolean.True, v.Boolean.False)
	case v.DateTime != nil:
		return v.DateTime.Min.Format("2006-01-02") + " to " + v.DateTime.Max.Format("2006-01-02")
	case len(v.TopValues) > 0:
		return fmt.Sprintf("top %q (%d)", v.TopValues[0].Value, v.TopValues[0].Count)
	}
	return ""
}
