package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"livechart/internal/export"
	"livechart/internal/live"
	"livechart/internal/logger"
	"livechart/internal/types"
)

const usage = `usage: livechart <command> [flags]

commands:
  serve    run the HTTP API and websocket push
  watch    poll one series and print frames as JSON lines
  logs     list, open or summarize trade logs
  export   fetch one series snapshot and save it to a file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdownSystem()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "logs":
		err = runLogs(ctx, os.Args[2:])
	case "export":
		err = runExport(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Command failed", err, "command", os.Args[1])
		shutdownSystem()
		os.Exit(1)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	listen := fs.String("listen", "", "listen address (overrides server.listen)")
	instrument := fs.String("instrument", "", "series to select on startup")
	resolution := fs.String("resolution", "1m", "resolution of the startup series")
	_ = fs.Parse(args)

	a, err := InitializeApp(configPath(*cfgPath))
	if err != nil {
		return err
	}
	defer a.Close()
	if *listen != "" {
		a.Config.Server.Listen = *listen
		a.Server = initializeServer(a.Config, a.Session, a.Gateway)
	}

	unsubscribe := publishFrames(ctx, a)
	defer unsubscribe()
	go compressOldJournals(ctx, a)

	if *instrument != "" {
		if err := a.Session.Select(*instrument, *resolution); err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- a.Server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Server.Shutdown(shutdownCtx)
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	instrument := fs.String("instrument", "", "instrument to watch (required)")
	resolution := fs.String("resolution", "1m", "bar resolution")
	count := fs.Int("count", 0, "stop after this many completed refreshes (0 = run until interrupted)")
	_ = fs.Parse(args)

	if *instrument == "" {
		fs.Usage()
		return errors.New("-instrument is required")
	}

	a, err := InitializeApp(configPath(*cfgPath))
	if err != nil {
		return err
	}
	defer a.Close()

	frames := make(chan live.Frame, 8)
	unsubscribe := a.Session.Subscribe(func(f live.Frame) {
		if !completed(f) {
			return
		}
		select {
		case frames <- f:
		default:
		}
	})
	defer unsubscribe()

	if err := a.Session.Select(*instrument, *resolution); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			if err := enc.Encode(f); err != nil {
				return err
			}
			seen++
			if *count > 0 && seen >= *count {
				return nil
			}
		}
	}
}

func runLogs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	source := fs.String("source", "live", "log source: live or backtest")
	file := fs.String("file", "", "log file to open (lists files when empty)")
	summary := fs.String("summary", "", "print a per-symbol summary of -file as csv or json")
	_ = fs.Parse(args)

	src, err := types.ParseLogSource(*source)
	if err != nil {
		return err
	}

	a, err := InitializeApp(configPath(*cfgPath))
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *file == "" {
		files, err := a.Session.ListLogs(ctx, src)
		if err != nil {
			return err
		}
		return enc.Encode(files)
	}

	view, err := a.Session.OpenLog(ctx, src, *file)
	if err != nil {
		return err
	}
	if view.Statistics == nil {
		logger.Warn(ctx, "Log not found", "source", src, "file", *file)
	}
	if *summary != "" {
		return export.WriteSummary(os.Stdout, export.Summarize(view.Trades), *summary)
	}
	return enc.Encode(view)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	instrument := fs.String("instrument", "", "instrument to export (required)")
	resolution := fs.String("resolution", "1m", "bar resolution")
	format := fs.String("format", "csv", "output format: csv, json or parquet")
	output := fs.String("output", "", "output file (default: <export dir>/<instrument>_<resolution>_<time>.<ext>)")
	timeout := fs.Duration("timeout", 30*time.Second, "how long to wait for the snapshot")
	_ = fs.Parse(args)

	if *instrument == "" {
		fs.Usage()
		return errors.New("-instrument is required")
	}
	saver := export.NewSaver(*format)
	if saver == nil {
		return fmt.Errorf("unknown format %q", *format)
	}

	a, err := InitializeApp(configPath(*cfgPath))
	if err != nil {
		return err
	}
	defer a.Close()

	waitCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	f, err := awaitRefresh(waitCtx, a.Session, *instrument, *resolution)
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		name := fmt.Sprintf("%s_%s_%s.%s", export.FileSafe(*instrument), *resolution,
			time.Now().UTC().Format("20060102_150405"), saver.Extension())
		path = filepath.Join(a.Config.Export.Dir, name)
		if err := os.MkdirAll(a.Config.Export.Dir, 0o755); err != nil {
			return err
		}
	}

	if err := export.SaveFile(saver, export.RowsFromBars(f.Bars, f.Annotations), path); err != nil {
		return err
	}
	logger.Info(ctx, "Series exported", "path", path, "bars", len(f.Bars), "annotations", len(f.Annotations))
	return nil
}
