package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"sweep/config"
	"sweep/editor"
	"sweep/replace"
	"sweep/search"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, ferr.Message)
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(stderr, "warning: settings not loaded: %v\n", err)
		cfg = config.Default()
	}
	opts.applyTo(cfg)

	logger, closeLog := openLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if opts.Restore {
		return restore(cwd, stdout, stderr)
	}

	searcher, err := search.New(opts.searchOptions(cfg), logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	idx, sum, err := searcher.Search(ctx, opts.roots()...)
	stop()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if idx.Len() == 0 {
		fmt.Fprintf(stdout, "no matches for %q in %d file(s)\n", opts.Args.Pattern, sum.FilesScanned)
		return 1
	}

	ws := editor.NewWorkspace(cfg, cwd, logger)
	if opts.Yes {
		return batch(ws, idx, opts.replaceText(), logger, stdout)
	}

	history := editor.LoadHistory(cwd, cfg.HistorySize)
	app := editor.NewApp(cfg, ws, history, logger, editor.AppOptions{
		Index:    idx,
		FindWhat: opts.Args.Pattern,
		Replace:  opts.replaceText(),
		Root:     cwd,
	})
	if err := app.Run(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// batch marks every match, applies the replacement once and prints what
// happened. Failures turn the exit status to 1.
func batch(ws *editor.Workspace, idx *replace.MatchIndex, template string, logger *slog.Logger, stdout io.Writer) int {
	idx.SelectAll()
	rep := replace.NewEngine(ws, logger).Apply(idx, template)
	idx.Compact()

	for _, p := range rep.FilesModified {
		fmt.Fprintf(stdout, "modified %s\n", p)
	}
	for _, err := range rep.Errors {
		fmt.Fprintf(stdout, "failed   %v\n", err)
	}
	fmt.Fprintf(stdout, "replaced %d match(es) in %d file(s), %d unchanged, %d failed\n",
		rep.Applied, len(rep.FilesModified), rep.Unchanged, rep.Failed)
	if rep.Failed > 0 {
		return 1
	}
	return 0
}

func restore(cwd string, stdout, stderr io.Writer) int {
	backups := editor.CheckBackups(cwd)
	if len(backups) == 0 {
		fmt.Fprintf(stdout, "no backups taken under %s\n", cwd)
		return 0
	}
	status := 0
	for _, b := range backups {
		if err := editor.RestoreBackup(b); err != nil {
			fmt.Fprintf(stderr, "error: restore %s: %v\n", b.OriginalPath, err)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "restored %s (backup from %s)\n", b.OriginalPath, b.Timestamp)
	}
	return status
}

// openLogger writes text logs to the configured file. The terminal belongs
// to the UI, so when the file cannot be opened logs are dropped.
func openLogger(cfg *config.Config) (*slog.Logger, func()) {
	path := cfg.LogFile
	if path == "" {
		path = config.DefaultLogPath()
	}
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				return slog.New(slog.NewTextHandler(f, handlerOpts)), func() { f.Close() }
			}
		}
	}
	return slog.New(slog.NewTextHandler(io.Discard, handlerOpts)), func() {}
}
