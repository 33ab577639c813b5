package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alucardeht/ghview-bridge/internal/capture"
	"github.com/alucardeht/ghview-bridge/internal/config"
	"github.com/alucardeht/ghview-bridge/internal/history"
	"github.com/alucardeht/ghview-bridge/internal/ipc"
	"github.com/alucardeht/ghview-bridge/internal/logger"
	"github.com/alucardeht/ghview-bridge/pkg/version"
)

const usage = `Usage: ghviewd [command] [flags]

Commands:
  serve     Run the screenshot host (default)
  windows   List top-level windows and mark the ones ghview would capture
  history   Show recent captures

Flags:
  --config PATH   Config file (default: ~/.ghview/config.toml)
  --socket PATH   Local channel endpoint (serve only)
  -n N            Number of entries (history only)
  --version       Show version
`

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "serve":
		err = runServe(args)
	case "windows":
		err = runWindows(args, os.Stdout)
	case "history":
		err = runHistory(args, os.Stdout)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "ghviewd %s: %v\n", command, err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	socketPath  string
	limit       int
	showVersion bool
}

func parseFlags(name string, args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.socketPath, "socket", "", "Local channel endpoint")
	fs.IntVar(&opts.limit, "n", 10, "Number of history entries")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.socketPath != "" {
		cfg.SocketPath = opts.socketPath
	}
	return cfg, nil
}

func runServe(args []string) error {
	opts, err := parseFlags("serve", args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("ghviewd %s\n", version.Version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	logCloser, err := logger.Setup(cfg.LogSettings())
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log := logger.ForComponent("main")

	matcher, err := capture.NewMatcher(cfg.WindowMatch...)
	if err != nil {
		return err
	}

	captureOpts := capture.Options{
		Prefix: cfg.CapturePrefix,
		Logger: logger.ForComponent("capture"),
	}
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.Warn("capture history disabled", "path", cfg.HistoryPath, "error", err)
		} else {
			defer store.Close()
			captureOpts.Recorder = store
		}
	}

	pipeline := capture.NewPipeline(capture.NewSystemSource(), matcher, captureOpts)
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	server := ipc.Start(ctx, ipc.ServerConfig{
		SocketPath:  cfg.SocketPath,
		ConnTimeout: cfg.ConnTimeout,
		Logger:      logger.ForComponent("ipc"),
	}, pipeline)

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return server.Close()
	})

	log.Info("ghviewd started",
		"version", version.Version,
		"socket", cfg.SocketPath,
		"listening", server.Listening(),
		"match", matcher.String())

	return g.Wait()
}

func runWindows(args []string, out io.Writer) error {
	opts, err := parseFlags("windows", args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	matcher, err := capture.NewMatcher(cfg.WindowMatch...)
	if err != nil {
		return err
	}

	source := capture.NewSystemSource()
	if c, ok := source.(io.Closer); ok {
		defer c.Close()
	}

	windows, err := source.Windows()
	if err != nil {
		return err
	}
	printWindows(out, windows, matcher)
	return nil
}

func printWindows(out io.Writer, windows []capture.Window, matcher *capture.Matcher) {
	fmt.Fprintf(out, "Found %d windows:\n\n", len(windows))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPP\tTITLE\tSIZE\t")
	for _, w := range windows {
		size := "?"
		if width, height, err := w.Size(); err == nil {
			size = fmt.Sprintf("%dx%d", width, height)
		}
		marker := ""
		if matcher.Match(w.AppName()) {
			marker = "<-- MATCH"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", w.ID(), w.AppName(), w.Title(), size, marker)
	}
	tw.Flush()
}

func runHistory(args []string, out io.Writer) error {
	opts, err := parseFlags("history", args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.HistoryPath == "" {
		return errors.New("capture history is disabled (history_path is empty)")
	}

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), opts.limit)
	if err != nil {
		return err
	}
	printHistory(out, entries)
	return nil
}

func printHistory(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No captures recorded")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIZE\tCAPTURED\tPATH")
	for _, e := range entries {
		captured := fmt.Sprintf("%dx%d", e.CapturedWidth, e.CapturedHeight)
		if e.Scaled {
			captured += " (scaled)"
		}
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Width, e.Height, captured, e.Path)
	}
	tw.Flush()
}
