// Fleetmind is an autonomous fleet management agent.
//
// It connects to a FleetMind MCP tool server, reasons with Gemini (or a
// local Ollama model), and exposes an HTTP API for conversational fleet
// operations. Configuration comes from a YAML file discovered
// automatically (see [config.DefaultSearchPaths]), overlaid with
// environment variables (a .env file is honored when present).
//
// Usage:
//
//	fleetmind serve            Start the API server
//	fleetmind ask <request>    Process a single request (for testing)
//	fleetmind init             Write an example config.yaml to the current directory
//	fleetmind version          Print version and build information
//	fleetmind -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fleetmind/fleetmind-agent/examples"
	"github.com/fleetmind/fleetmind-agent/internal/agent"
	"github.com/fleetmind/fleetmind-agent/internal/api"
	"github.com/fleetmind/fleetmind-agent/internal/archive"
	"github.com/fleetmind/fleetmind-agent/internal/buildinfo"
	"github.com/fleetmind/fleetmind-agent/internal/catalog"
	"github.com/fleetmind/fleetmind-agent/internal/config"
	"github.com/fleetmind/fleetmind-agent/internal/llm"
	"github.com/fleetmind/fleetmind-agent/internal/mcp"
	"github.com/fleetmind/fleetmind-agent/internal/memory"
	"github.com/fleetmind/fleetmind-agent/internal/summarizer"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run], keeping
// os.Exit, os.Stdout, and os.Args out of the application logic so the
// full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible to
// call run() concurrently from tests, and the argument surface here is
// small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: fleetmind ask <request>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "init":
		return runInit(stdout)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runInit writes the example config file to the current directory. It
// refuses to overwrite an existing config.yaml.
func runInit(w io.Writer) error {
	const path = "config.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	if err := os.WriteFile(path, examples.ConfigYAML, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "Wrote %s. Edit it (or set MCP_SERVER_URL and GEMINI_API_KEY) and run: fleetmind serve\n", path)
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "FleetMind - Autonomous Fleet Management Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: fleetmind [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Process a single request (for testing)")
	fmt.Fprintln(w, "  init         Write an example config.yaml to the current directory")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/fleetmind/config.yaml, /etc/fleetmind/config.yaml")
	return nil
}

// newLogger builds the structured logger. All logs go to stdout; the
// TRACE custom level renders by name.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig discovers and loads configuration. A missing config file
// is not fatal: the defaults plus environment variables (including a
// .env file, matching how the original deployment was configured) are
// enough to run.
func loadConfig(explicit string) (*config.Config, string, error) {
	// Best-effort: absence of a .env file is the common case.
	_ = godotenv.Load()

	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		cfg := config.Default()
		cfg.ApplyEnv()
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, path, nil
}

// buildOracle constructs the configured reasoning oracle.
func buildOracle(cfg *config.Config, logger *slog.Logger) (llm.Oracle, error) {
	timeout := time.Duration(cfg.Oracle.TimeoutSec) * time.Second

	switch cfg.Oracle.Provider {
	case "", "gemini":
		return llm.NewGeminiClient(llm.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	case "ollama":
		return llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.Ollama.URL,
			Model:   cfg.Ollama.Model,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %q", cfg.Oracle.Provider)
	}
}

// buildCatalog constructs the MCP transport, client, and tool catalog,
// and attempts discovery. Discovery failure is returned so callers can
// decide whether it is fatal.
func buildCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, *mcp.Client, error) {
	var transport mcp.Transport
	switch cfg.MCP.Transport {
	case "", "sse":
		transport = mcp.NewSSETransport(mcp.SSEConfig{
			URL:    cfg.MCP.URL,
			APIKey: cfg.MCP.APIKey,
			Logger: logger,
		})
	case "http":
		transport = mcp.NewHTTPTransport(mcp.HTTPConfig{
			URL:    cfg.MCP.URL,
			APIKey: cfg.MCP.APIKey,
			Logger: logger,
		})
	default:
		return nil, nil, fmt.Errorf("unknown MCP transport: %q", cfg.MCP.Transport)
	}

	client := mcp.NewClient(transport, logger)
	cat := catalog.New(client, logger)

	discoverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := cat.Discover(discoverCtx)

	return cat, client, err
}

// runServe is the primary operating mode: load config, connect to the
// tool server, build the oracle and session manager, start the API
// server, and block until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting FleetMind",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"mcp_url", cfg.MCP.URL,
		"oracle", cfg.Oracle.Provider,
	)

	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(issues, "\n  "))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tool server connection. Discovery failure is survivable: the
	// server starts anyway, /health reports disconnected, and turns
	// proceed without tools until the server comes back and a restart
	// picks it up.
	cat, mcpClient, err := buildCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Warn("tool discovery failed, serving without tools", "error", err)
	}
	defer mcpClient.Close()

	oracle, err := buildOracle(cfg, logger)
	if err != nil {
		return err
	}

	summ := summarizer.New(oracle, logger)
	memOpts := memory.Options{
		CompactionThreshold:    cfg.Agent.CompactionThreshold,
		KeepRecent:             cfg.Agent.KeepRecent,
		KeepPreferencesOnClear: cfg.Agent.KeepPreferencesOnClear,
	}
	sessions := api.NewSessionManager(oracle, cat, summ, memOpts, cfg.Agent.MaxToolCalls, logger)

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, sessions, cat, logger)

	if cfg.Archive.Path != "" {
		store, err := archive.Open(cfg.Archive.Path, logger)
		if err != nil {
			return fmt.Errorf("open turn archive: %w", err)
		}
		defer store.Close()
		server.SetArchive(store)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// runAsk processes a single request without starting the server.
// Useful for smoke tests and debugging.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	request := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(issues, "\n  "))
	}

	cat, mcpClient, err := buildCatalog(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to tool server: %w", err)
	}
	defer mcpClient.Close()

	oracle, err := buildOracle(cfg, logger)
	if err != nil {
		return err
	}

	mem := memory.New(memory.DefaultOptions(), logger)
	loop := agent.NewLoop(agent.LoopConfig{
		Oracle:       oracle,
		Tools:        cat,
		Memory:       mem,
		Summarizer:   summarizer.New(oracle, logger),
		MaxToolCalls: cfg.Agent.MaxToolCalls,
		Logger:       logger,
	})

	resp, err := loop.ProcessMessage(ctx, request)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, resp.Message)
	return nil
}
