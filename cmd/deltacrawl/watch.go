package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nao1215/deltacrawl/internal/config"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Crawl directories again whenever they change",
		Long: `Watch crawls the given directories once, then watches them for file system
events and crawls a directory again after it has been quiet for --debounce.

Only directories can be watched. Press Ctrl-C to stop; a crawl in progress
is stopped and its partial results are recorded.

Examples:
  # Watch a directory with the default 2s debounce
  deltacrawl watch ./inbox

  # Re-crawl after 10 seconds without changes, printing JSON reports
  deltacrawl watch --debounce 10s --json ./inbox ./outbox`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatchCmd,
	}
	addCrawlFlags(cmd)
	cmd.Flags().Duration("debounce", config.DefaultWatchDebounce,
		"Quiet period before a changed directory is crawled again")
	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return err
	}
	if debounce <= 0 {
		return errors.New("invalid debounce: must be positive")
	}

	logger := setupLogger(cmd, cfg)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	a, err := newApp(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := newDirWatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.run(ctx, debounce, func(ctx context.Context, targets []string) {
		results, err := a.crawl(ctx, targets)
		if err != nil {
			logger.Error("crawl failed", "error", err)
			return
		}
		if err := failures(results); err != nil {
			logger.Error("crawl failed", "error", err)
		}
	})
}

// dirWatcher maps file system events below a set of root directories to
// the targets that need a new crawl.
type dirWatcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// roots are the absolute root directories, parallel to targets.
	roots   []string
	targets []string

	// excluded is a directory whose events are ignored, usually the
	// database directory.
	excluded string

	includeHidden bool
}

// newDirWatcher watches every directory below the configured targets.
func newDirWatcher(cfg *config.Config, logger *slog.Logger) (*dirWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &dirWatcher{
		watcher:       fw,
		logger:        logger,
		includeHidden: cfg.IncludeHidden,
	}
	if cfg.LedgerBackend != config.LedgerMemory && cfg.DBDir != "" {
		if abs, err := filepath.Abs(cfg.DBDir); err == nil {
			w.excluded = abs
		}
	}

	for _, target := range cfg.Targets {
		if isURL(target) {
			_ = fw.Close()
			return nil, fmt.Errorf("cannot watch %s: only directories can be watched", target)
		}
		root, err := filepath.Abs(target)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			_ = fw.Close()
			return nil, fmt.Errorf("cannot watch %s: not a directory", target)
		}
		if err := w.addTree(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.roots = append(w.roots, root)
		w.targets = append(w.targets, target)
	}
	return w, nil
}

// Close stops watching.
func (w *dirWatcher) Close() error {
	return w.watcher.Close()
}

// addTree watches root and every directory below it. fsnotify watches are
// not recursive.
func (w *dirWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are reported by the crawl itself.
			w.logger.Debug("skipping directory", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// ignored reports whether events for p never cause a crawl.
func (w *dirWatcher) ignored(p string) bool {
	if w.excluded != "" && (p == w.excluded || strings.HasPrefix(p, w.excluded+string(filepath.Separator))) {
		return true
	}
	return !w.includeHidden && strings.HasPrefix(filepath.Base(p), ".")
}

// targetOf returns the index of the root containing p, or -1.
func (w *dirWatcher) targetOf(p string) int {
	best := -1
	for i, root := range w.roots {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			if best < 0 || len(root) > len(w.roots[best]) {
				best = i
			}
		}
	}
	return best
}

// handle records the target touched by ev. New directories are watched.
func (w *dirWatcher) handle(ev fsnotify.Event, pending map[int]bool) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	if w.ignored(ev.Name) {
		return false
	}
	idx := w.targetOf(ev.Name)
	if idx < 0 {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
	pending[idx] = true
	return true
}

// run crawls every target once, then crawls the targets touched by events
// after debounce without further events. It returns when ctx is done.
func (w *dirWatcher) run(ctx context.Context, debounce time.Duration, crawl func(context.Context, []string)) error {
	crawl(ctx, w.targets)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[int]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handle(ev, pending) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			indexes := make([]int, 0, len(pending))
			for i := range pending {
				indexes = append(indexes, i)
			}
			slices.Sort(indexes)
			targets := make([]string, 0, len(indexes))
			for _, i := range indexes {
				targets = append(targets, w.targets[i])
			}
			clear(pending)
			w.logger.Info("re-crawling changed sources", "targets", targets)
			crawl(ctx, targets)
		}
	}
}
