// Command rrwebd is the session-recording daemon. It opens pages in
// headless Chrome, materializes them into live documents, and records
// them as event streams to the configured sinks.
//
// Usage:
//
//	rrwebd -config rrwebd.yaml         # record pages from YAML config
//	rrwebd -url https://example.com    # quick single-page recording (stdout sink)
//	rrwebd -mcp                        # serve recording tools over MCP stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/Appsurify/rrweb/browser"
	"github.com/Appsurify/rrweb/config"
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/idgen"
	"github.com/Appsurify/rrweb/recorder"
	"github.com/Appsurify/rrweb/sink"
)

func main() {
	configPath := flag.String("config", "", "path to rrwebd.yaml config file")
	singleURL := flag.String("url", "", "record a single URL (stdout sink)")
	mcpMode := flag.Bool("mcp", false, "serve recording tools over MCP stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *mcpMode); err != nil {
		logger.Error("rrwebd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL string, mcpMode bool) error {
	switch {
	case singleURL != "":
		cfg := &config.Config{Pages: []config.PageConfig{{
			ID: idgen.New(), URL: singleURL, CaptureInterval: time.Minute,
		}}}
		cfg.Sinks = []config.SinkConfig{{Type: "stdout"}}
		return runPages(ctx, logger, cfg)

	case configPath != "":
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		return runPages(ctx, logger, cfg)

	case mcpMode:
		return runMCP(ctx, logger)
	}

	fmt.Fprintln(os.Stderr, "usage: rrwebd -config <file> | -url <url> | -mcp")
	os.Exit(1)
	return nil
}

func buildSinks(logger *slog.Logger, cfgs []config.SinkConfig, recordingID string) (sink.Sink, error) {
	var sinks []sink.Sink
	for _, sc := range cfgs {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, sink.NewStdout(nil))
		case "webhook":
			sinks = append(sinks, sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger)))
		case "journal":
			j, err := sink.OpenJournal(sc.Path, recordingID)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, j)
		default:
			return nil, fmt.Errorf("rrwebd: unknown sink type %q", sc.Type)
		}
	}
	return sink.NewRouter(logger, sinks...), nil
}

func runPages(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Stealth == "headful",
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	for _, page := range cfg.Pages {
		page := page
		go func() {
			if err := recordPage(ctx, logger, mgr, cfg, page); err != nil {
				logger.Error("rrwebd: page recording failed", "url", page.URL, "error", err)
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func recordPage(ctx context.Context, logger *slog.Logger, mgr *browser.Manager, cfg *config.Config, page config.PageConfig) error {
	tab, err := browser.OpenTab(ctx, mgr, page.URL, page.ID)
	if err != nil {
		return err
	}
	defer tab.Close()

	bridge, err := browser.NewPageBridge(tab, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	doc := bridge.Doc

	out, err := buildSinks(logger, cfg.Sinks, page.ID)
	if err != nil {
		return err
	}
	defer out.Close()

	opts, err := cfg.Record.ToOptions()
	if err != nil {
		return err
	}
	opts.Document = doc
	opts.Emit = sink.Adapt(ctx, out, logger)
	opts.Logger = logger

	handle, err := recorder.Record(opts)
	if err != nil {
		return err
	}
	defer handle.Stop()

	logger.Info("rrwebd: recording", "url", page.URL, "id", page.ID)
	driveDocument(ctx, logger, bridge, page.CaptureInterval)
	return nil
}

// driveDocument pumps the document scheduler from wall time and
// refreshes page state on the capture interval. A refresh that changes
// the markup replaces the document element (one coalesced mutation);
// geometry changes surface through the visibility pipeline.
func driveDocument(ctx context.Context, logger *slog.Logger, bridge *browser.PageBridge, captureInterval time.Duration) {
	const tick = 100 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	lastCapture := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bridge.Doc.Scheduler().Advance(int64(tick / time.Millisecond))

			if time.Since(lastCapture) < captureInterval {
				continue
			}
			lastCapture = time.Now()

			if err := bridge.Refresh(ctx); err != nil {
				logger.Warn("rrwebd: re-capture failed", "url", bridge.Tab.PageURL, "error", err)
				continue
			}
			bridge.Doc.Scheduler().Flush()
		}
	}
}

func runMCP(ctx context.Context, logger *slog.Logger) error {
	mgr := browser.NewManager(browser.Config{Logger: logger})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	sessions := recorder.NewSessionManager(logger)
	defer sessions.StopAll()

	sessions.SetOpener(func(ctx context.Context, url, pageID string) (*dom.Document, error) {
		tab, err := browser.OpenTab(ctx, mgr, url, pageID)
		if err != nil {
			return nil, err
		}
		capture, err := tab.Capture(ctx)
		if err != nil {
			tab.Close()
			return nil, err
		}
		return browser.BuildDocument(capture, time.Now().UnixMilli())
	})

	defaults := recorder.Options{Emit: sink.Adapt(ctx, sink.NewStdout(nil), logger), Logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{Name: "rrwebd", Version: "1.0.0"}, nil)
	sessions.RegisterMCP(srv, defaults)

	logger.Info("rrwebd: serving MCP over stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}
