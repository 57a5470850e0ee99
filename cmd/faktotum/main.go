// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nwiesmann/faktotum/pkg/config"
	"github.com/nwiesmann/faktotum/pkg/telemetry"
)

const version = "dev"

type globalFlags struct {
	ConfigPath  string
	JSON        bool
	NoTelemetry bool
	Watch       bool
	Help        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage()
		return
	case "version":
		ensureNoArgs(args[1:])
		printVersion()
		return
	}

	cfg, watcher, err := loadConfig(ctx, global)
	if err != nil {
		fatal(err)
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cfg.Telemetry.Enabled && !global.NoTelemetry {
		shutdown, err := telemetry.InitWithConfig("faktotum", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			fatal(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer a.Close()

	switch cmd {
	case "ask":
		runAsk(ctx, a, global, args[1:])
	case "orchestrate":
		runOrchestrate(ctx, a, global, args[1:])
	case "chat":
		runChat(ctx, a, args[1:])
	case "process":
		runProcess(ctx, a, global, args[1:])
	case "agents":
		ensureNoArgs(args[1:])
		runAgents(a, global)
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func loadConfig(ctx context.Context, global globalFlags) (*config.Config, *config.Watcher, error) {
	path := global.ConfigPath
	if path == "" {
		path = getenv("FAKTOTUM_CONFIG", "")
	}
	if path == "" {
		if _, err := os.Stat("config/config.yaml"); err == nil {
			path = "config/config.yaml"
		}
	}
	if global.Watch {
		if path == "" {
			return nil, nil, fmt.Errorf("--watch requires a config file")
		}
		watcher, cfg, err := config.WatchConfig(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return cfg, watcher, nil
	}
	cfg, err := config.Load(path)
	return cfg, nil, err
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--no-telemetry":
			flags.NoTelemetry = true
		case arg == "--watch":
			flags.Watch = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func printVersion() {
	fmt.Println(version)
}

func printUsage() {
	fmt.Print(`Faktotum CLI

Usage:
  faktotum [global flags] <command> [args]

Global flags:
  --config <path>      Path to config.yaml (default config/config.yaml)
  --json               JSON output
  --no-telemetry       Disable telemetry even when configured
  --watch              Reload config on change

Commands:
  ask [--agent <name>] <query>          Ask a single agent (@mention selects by alias)
  orchestrate <task>                    Let the supervisor delegate the task
  chat [--agent <name>] [--session ID]  Interactive chat session
  process <file> [--output <path>] [--project <id>] [--dry-run]
                                        Answer the questions in a markdown file
  agents                                List configured agents
  version
  help

`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
