package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/deltacrawl/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	title cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	report = report.Snapshot()
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeErrors(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs a table with one row per run.
func (w *MarkdownWriter) WriteHistory(reports []*model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Crawl History")
	md.PlainText("")

	if len(reports) == 0 {
		md.PlainText("No crawl runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		r = r.Snapshot()
		rows = append(rows, []string{
			r.StartedAt.Format(timeLayout),
			"`" + r.Source + "`",
			w.label(r.Status.String()),
			strconv.Itoa(r.New),
			strconv.Itoa(r.Changed),
			strconv.Itoa(r.Unchanged),
			strconv.Itoa(r.Deleted),
			strconv.Itoa(r.Errors),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Started", "Source", "Status", "New", "Changed", "Unchanged", "Deleted", "Errors"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Source", "`" + report.Source + "`"},
		{"Run ID", "`" + report.RunID + "`"},
	}
	if !report.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", report.StartedAt.Format(timeLayout)})
	}
	rows = append(rows, []string{"Status", w.statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status with an indicator.
func (w *MarkdownWriter) statusText(report *model.CrawlReport) string {
	switch report.Status {
	case model.StatusCompleted:
		return "✅ Completed"
	case model.StatusStopped:
		return "⚠️ Stopped (partial results)"
	case model.StatusAborted:
		if report.Fatal != "" {
			return "❌ Aborted - " + report.Fatal
		}
		return "❌ Aborted"
	default:
		return w.label(report.Status.String())
	}
}

// writeSummary writes the change counters, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Change Summary")
	md.PlainText("")

	counts := w.counts(report)
	rows := make([][]string, 0, len(counts)+2)
	for _, c := range counts {
		rows = append(rows, []string{c.label, strconv.Itoa(c.value)})
	}
	rows = append(rows,
		[]string{"**Visited**", "**" + strconv.Itoa(report.Total()) + "**"},
		[]string{"Errors", strconv.Itoa(report.Errors)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Total()+report.Deleted > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report)
}

type count struct {
	label string
	value int
}

func (w *MarkdownWriter) counts(report *model.CrawlReport) []count {
	return []count{
		{w.label(model.ClassNew.String()), report.New},
		{w.label(model.ClassChanged.String()), report.Changed},
		{w.label(model.ClassUnchanged.String()), report.Unchanged},
		{w.label(model.ClassDeleted.String()), report.Deleted},
	}
}

// writePieChart writes a mermaid pie chart of the classifications.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts []count) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Item Classification"),
		piechart.WithShowData(true),
	)
	for _, c := range counts {
		if c.value > 0 {
			chart.LabelAndIntValue(c.label, uint64(c.value))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Status == model.StatusAborted:
		md.Cautionf("The run was aborted. The access ledger was left unchanged.")
	case report.Status == model.StatusStopped:
		md.Warningf("The run was stopped before enumeration finished. Deleted items were not detected.")
	case report.Errors > 0:
		md.Importantf("%d item(s) could not be processed.", report.Errors)
	case report.New+report.Changed+report.Deleted == 0:
		md.Note("Nothing changed since the previous run.")
	default:
		md.Tip("All changes were processed.")
	}
	md.PlainText("")
}

// writeErrors writes the item error table.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.ItemErrors) == 0 {
		return
	}

	md.H2("Errors")
	md.PlainText("")

	rows := make([][]string, 0, len(report.ItemErrors))
	for _, e := range report.ItemErrors {
		rows = append(rows, []string{
			"`" + truncateString(e.ItemID, 60) + "`",
			w.label(strings.ReplaceAll(string(e.Kind), "_", " ")),
			truncateString(e.Message, 80),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Kind", "Message"},
		Rows:   rows,
	})
	md.PlainText("")

	if hidden := report.Errors - len(report.ItemErrors); hidden > 0 {
		md.PlainTextf("%d further error(s) were not recorded.", hidden)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by deltacrawl*")
}

// label turns an upper- or snake-case name into a title-cased label.
func (w *MarkdownWriter) label(s string) string {
	return w.title.String(strings.ToLower(s))
}
