// Command corona collects per-country COVID-19 series into a SQLite store.
//
// Usage:
//
//	corona -db corona.db                    # catch up from the stored history
//	corona -db corona.db -mode all          # refetch everything
//	corona -config corona.yaml -countries BJ,TD
//	corona -db corona.db -stats             # show store stats and exit
//	corona -db corona.db -serve :8080       # HTTP read API + collect trigger
//	corona -db corona.db -mcp               # MCP tools over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/striezel/corona-sub001/collect"
)

type options struct {
	configPath  string
	dbPath      string
	metricsDB   string
	mode        string
	countries   string
	continent   string
	concurrency int
	showStats   bool
	serveAddr   string
	mcpStdio    bool
	traceSQL    bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to corona.yaml config file")
	flag.StringVar(&o.dbPath, "db", "", "path to the records database (overrides config)")
	flag.StringVar(&o.metricsDB, "metrics-db", "", "path to the metrics database (overrides config)")
	flag.StringVar(&o.mode, "mode", "recent", "collection mode: recent or all")
	flag.StringVar(&o.countries, "countries", "", "comma-separated country codes (default: whole catalog)")
	flag.StringVar(&o.continent, "continent", "", "restrict to one continent")
	flag.IntVar(&o.concurrency, "concurrency", 0, "parallel countries (overrides config)")
	flag.BoolVar(&o.showStats, "stats", false, "show store stats and exit")
	flag.StringVar(&o.serveAddr, "serve", "", "serve the HTTP API on this address instead of collecting once")
	flag.BoolVar(&o.mcpStdio, "mcp", false, "serve MCP tools over stdio instead of collecting once")
	flag.BoolVar(&o.traceSQL, "trace-sql", false, "trace records-store SQL into the metrics database")
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
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("corona: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}

	c, err := collect.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer c.Close()

	switch {
	case o.showStats:
		stats, err := c.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return printJSON(stats)

	case o.mcpStdio:
		srv := mcp.NewServer(&mcp.Implementation{Name: "corona", Version: "0.1.0"}, nil)
		c.RegisterMCP(srv)
		logger.Info("corona: mcp on stdio", "db", cfg.DBPath)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil

	case o.serveAddr != "":
		return serve(ctx, logger, c.Handler(), o.serveAddr)
	}

	mode, err := collect.ParseMode(o.mode)
	if err != nil {
		return err
	}
	report, err := c.Collect(ctx, mode)
	if perr := printJSON(report); perr != nil && err == nil {
		err = perr
	}
	return err
}

func serve(ctx context.Context, logger *slog.Logger, h http.Handler, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// POST /api/collect answers when the run is over.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("corona: http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("corona: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func resolveConfig(o options) (*collect.Config, error) {
	cfg := &collect.Config{}
	if o.configPath != "" {
		var err error
		if cfg, err = collect.LoadConfigFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.metricsDB != "" {
		cfg.MetricsDBPath = o.metricsDB
	}
	if o.countries != "" {
		cfg.Countries = nil
		for _, id := range strings.Split(o.countries, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Countries = append(cfg.Countries, id)
			}
		}
	}
	if o.continent != "" {
		cfg.Continent = o.continent
	}
	if o.traceSQL {
		cfg.TraceSQL = true
	}
	if o.concurrency > 0 {
		cfg.Concurrency = o.concurrency
	}

	if o.configPath == "" && cfg.DBPath == "" {
		fmt.Fprintln(os.Stderr, "usage: corona -config <file> | -db <path> [-mode recent|all] [-stats] [-serve addr] [-mcp]")
		os.Exit(2)
	}
	return cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
