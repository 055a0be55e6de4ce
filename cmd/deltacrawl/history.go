package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/deltacrawl/internal/config"
	"github.com/nao1215/deltacrawl/internal/database"
	"github.com/nao1215/deltacrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [dir|url]",
		Short: "Show stored crawl runs and extracted statements",
		Long: `History reads the run reports and statements stored by previous crawls.

Without arguments it lists the most recent runs of every source. With a
directory or URL it lists the runs of that source only.

Examples:
  # Recent runs of all sources
  deltacrawl history

  # Runs of one directory as Markdown
  deltacrawl history --markdown ./documents

  # List every crawled source
  deltacrawl history --list-sources

  # Show the full report of one run
  deltacrawl history --run 1b4e28ba-2fa1-11d2-883f-0016d3cca427

  # Show the statements extracted for an item
  deltacrawl history --item file:///home/me/documents/report.pdf

  # Find items by statement
  deltacrawl history --where contentType=application/pdf`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolP("list-sources", "L", false,
		"List all crawled sources")
	cmd.Flags().StringP("run", "r", "",
		"Show the full report of the run with this ID")
	cmd.Flags().StringP("item", "i", "",
		"Show the statements stored for this item ID")
	cmd.Flags().String("where", "",
		"List items having a statement predicate=object")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")

	return cmd
}

// historyQuery holds the parsed history flags.
type historyQuery struct {
	target      string
	limit       int
	listSources bool
	runID       string
	itemID      string
	where       string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}

	var q historyQuery
	var errs []error
	var e error
	q.limit, e = cmd.Flags().GetInt("limit")
	errs = append(errs, e)
	q.listSources, e = cmd.Flags().GetBool("list-sources")
	errs = append(errs, e)
	q.runID, e = cmd.Flags().GetString("run")
	errs = append(errs, e)
	q.itemID, e = cmd.Flags().GetString("item")
	errs = append(errs, e)
	q.where, e = cmd.Flags().GetString("where")
	errs = append(errs, e)
	cfg.JSONReport, e = cmd.Flags().GetBool("json")
	errs = append(errs, e)
	cfg.MarkdownReport, e = cmd.Flags().GetBool("markdown")
	errs = append(errs, e)
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}
	if len(args) == 1 {
		q.target = args[0]
	}

	// Validate arguments before opening the database.
	if q.where != "" && !strings.Contains(q.where, "=") {
		return fmt.Errorf("invalid --where %q: expected predicate=object", q.where)
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no crawl history in %s: %w", cfg.DBDir, err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), cmd.OutOrStdout(), cfg, db, q)
}

// runHistory answers one history query.
func runHistory(ctx context.Context, out io.Writer, cfg *config.Config, db *database.CrawlDB, q historyQuery) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch {
	case q.listSources:
		return listSources(ctx, out, db)
	case q.runID != "":
		return showRun(ctx, out, cfg, db, q.runID)
	case q.itemID != "":
		return showItem(ctx, out, db, q.itemID)
	case q.where != "":
		predicate, object, _ := strings.Cut(q.where, "=")
		return findItems(ctx, out, db, predicate, object)
	}

	id := ""
	if q.target != "" {
		var err error
		id, err = sourceID(q.target)
		if err != nil {
			return err
		}
	}
	reports, err := db.GetCrawlHistory(ctx, id, q.limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 && id != "" && !cfg.JSONReport {
		fmt.Fprintf(out, "No crawl runs recorded for %s\n", id)
		fmt.Fprintln(out, "\nUse 'deltacrawl crawl' to crawl this source.")
		return nil
	}
	_, err = historyWriter(cfg, out).WriteHistory(reports)
	return err
}

// historyWriter selects the output format of history listings.
func historyWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(true))
	}
}

// listSources prints every crawled source.
func listSources(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	sources, err := db.ListCrawledSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(out, "No crawled sources found in the database.")
		fmt.Fprintln(out, "\nUse 'deltacrawl crawl <dir|url>' to crawl a source.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sources (%d):\n\n", len(sources))
	fmt.Fprintf(out, "  %-6s  %-8s  %-20s  %s\n", "Runs", "Items", "Last run", "Source")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, s := range sources {
		fmt.Fprintf(out, "  %-6d  %-8d  %-20s  %s\n",
			s.Runs, s.Items, s.LastRun.Local().Format("2006-01-02 15:04:05"), s.Source)
	}
	fmt.Fprintln(out, "\nUse 'deltacrawl history <dir|url>' to see the runs of a source.")
	return nil
}

// showRun prints the full report of one run.
func showRun(ctx context.Context, out io.Writer, cfg *config.Config, db *database.CrawlDB, runID string) error {
	r, err := db.GetCrawlReport(ctx, runID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return err
	}
	cfg.Verbose = true
	_, err = newReportWriter(cfg, out).Write(r)
	return err
}

// showItem prints the statements stored for one item.
func showItem(ctx context.Context, out io.Writer, db *database.CrawlDB, itemID string) error {
	fragment, err := db.GetFragment(ctx, itemID)
	if err != nil {
		return err
	}
	if fragment == nil {
		return fmt.Errorf("no statements stored for %s", itemID)
	}
	fmt.Fprintf(out, "%s (%d statements)\n\n", itemID, fragment.Len())
	for _, s := range fragment.Statements {
		fmt.Fprintf(out, "  %-16s %s\n", s.Predicate, s.Object)
	}
	return nil
}

// findItems prints the items having a statement predicate=object.
func findItems(ctx context.Context, out io.Writer, db *database.CrawlDB, predicate, object string) error {
	subjects, err := db.QuerySubjects(ctx, predicate, object)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintf(out, "No items with %s=%s\n", predicate, object)
		return nil
	}
	for _, s := range subjects {
		fmt.Fprintln(out, s)
	}
	return nil
}
