package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/moisson/api"
	"github.com/hazyhaar/moisson/blobs"
	"github.com/hazyhaar/moisson/catalog"
	"github.com/hazyhaar/moisson/extractor"
	"github.com/hazyhaar/moisson/fetch"
	"github.com/hazyhaar/moisson/intake"
	"github.com/hazyhaar/moisson/paywall"
	"github.com/hazyhaar/moisson/runner"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "task file (plain task array or search result groups)")
		configPath = flag.String("config", "", "YAML config file")
		outDir     = flag.String("outdir", "", "override data directory")
		serveAddr  = flag.String("serve", "", "serve the read-only catalog API on this address instead of running a batch")
		mcpServe   = flag.Bool("mcp", false, "serve MCP tools on stdio instead of running a batch")
	)
	flag.Parse()

	logger := newLogger(env("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := loadConfig(*configPath)
	if *outDir != "" {
		cfg.DataDir = *outDir
	}
	if v := env("MOISSON_DB", ""); v != "" {
		cfg.DBPath = v
	}
	if v := env("MOISSON_DATA_DIR", ""); v != "" && *outDir == "" {
		cfg.DataDir = v
	}

	// A broken storage backend aborts before any task starts.
	db, err := catalog.Open(cfg.DBPath)
	if err != nil {
		slog.Error("catalog open", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := catalog.NewStore(db)

	blobStore, err := blobs.New(cfg.DataDir)
	if err != nil {
		slog.Error("blob store", "error", err)
		os.Exit(1)
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:    cfg.Fetch.Timeout,
		MaxBytes:   cfg.Fetch.MaxBytes,
		MaxRetries: cfg.Fetch.MaxRetries,
		UserAgent:  cfg.Fetch.UserAgent,
	})
	extr := extractor.New(extractor.Config{MinTextLen: cfg.MinTextLen, Logger: logger})
	run := runner.New(*cfg, fetcher, extr, paywall.New(), store, blobStore, logger)

	switch {
	case *serveAddr != "":
		serveAPI(ctx, *serveAddr, store)
	case *mcpServe:
		serveMCP(ctx, run, store)
	default:
		runBatch(ctx, run, *inputPath, cfg.DataDir)
	}
}

func runBatch(ctx context.Context, run *runner.Runner, inputPath, dataDir string) {
	if inputPath == "" {
		slog.Error("missing -input task file")
		os.Exit(2)
	}
	tasks, err := intake.LoadTasks(inputPath)
	if err != nil {
		slog.Error("load tasks", "error", err)
		os.Exit(1)
	}
	if len(tasks) == 0 {
		slog.Error("no tasks in input", "path", inputPath)
		os.Exit(1)
	}

	outcomes := run.Run(ctx, tasks)

	resultPath := filepath.Join(dataDir, "scrape_results.json")
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err == nil {
		err = os.WriteFile(resultPath, data, 0o644)
	}
	if err != nil {
		slog.Error("write results", "error", err)
		os.Exit(1)
	}

	for status, n := range runner.CountByStatus(outcomes) {
		slog.Info("outcome", "status", status, "count", n)
	}
	slog.Info("results written", "path", resultPath, "tasks", len(tasks))
}

func serveAPI(ctx context.Context, addr string, store *catalog.Store) {
	srv := &http.Server{Addr: addr, Handler: api.Router(store)}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	slog.Info("catalog api listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server", "error", err)
		os.Exit(1)
	}
}

func serveMCP(ctx context.Context, run *runner.Runner, store *catalog.Store) {
	impl := &mcp.Implementation{Name: "moisson", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	run.RegisterMCP(srv)
	store.RegisterMCP(srv)

	slog.Info("mcp server on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		slog.Error("mcp server", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) *runner.Config {
	if path == "" {
		path = env("MOISSON_CONFIG", "")
	}
	if path != "" {
		cfg, err := runner.LoadConfigFile(path)
		if err != nil {
			slog.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
		return cfg
	}
	return runner.Default()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
