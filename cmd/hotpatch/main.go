package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"hotpatch/internal/adapter/tui/uxerror"
	"hotpatch/internal/domain"
	"hotpatch/internal/infra/config"
	"hotpatch/internal/infra/logger"
	"hotpatch/internal/infra/tracer"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		exitOnError(run())
		return
	}

	switch os.Args[1] {
	case "run":
		exitOnError(run())
	case "doctor":
		if err := runDoctor(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'hotpatch --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
	os.Exit(1)
}

func showUsage() {
	fmt.Println(`hotpatch - hot reload client for a compile-to-JS watch server

USAGE:
    hotpatch [COMMAND] [FLAGS]

COMMANDS:
    run         Open the page and keep it in sync with the watch server
    doctor      Check the config, the watch server and the browser

    (no command) - same as run

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./hotpatch.yaml)

KEYS:
    enter/space   Show or hide details
    r             Reconnect now
    d / s / o     Switch to debug, standard or optimize mode
    q             Quit

CONFIGURATION:
    Config file: ./hotpatch.yaml
    Environment: HOTPATCH_* variables override config

EXAMPLES:
    hotpatch                                  # Run with hotpatch.yaml
    hotpatch --config dev/hotpatch.yaml       # Run with a custom config
    HOTPATCH_PAGE_HEADLESS=1 hotpatch         # Headless browser, plain output when piped
    hotpatch doctor                           # Check setup`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("HOTPATCH_CONFIG"); p != "" {
		return p
	}
	return "hotpatch.yaml"
}

// plainOutput reports whether the widget should be replaced by log lines.
func plainOutput(cfg *config.Config) bool {
	return cfg.UI.Renderer == "plain" || !isatty.IsTerminal(os.Stdout.Fd())
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return domain.NewDomainError("config.Load", domain.ErrConfigLoad, err.Error())
	}

	plain := plainOutput(cfg)

	// 2. Logger & Tracer
	newLogger := logger.New
	if plain {
		newLogger = logger.NewPlain
	}
	log, logCloser, err := newLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Page
	host, err := openPage(cfg, log)
	if err != nil {
		return err
	}
	defer host.Close()

	// 4. Sessions
	var programOpts []tea.ProgramOption
	if plain {
		programOpts = append(programOpts, tea.WithoutRenderer(), tea.WithInput(nil))
	}
	log.Info("hotpatch starting",
		"target", cfg.Target.Name,
		"server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"page_backend", cfg.Page.Backend,
		"plain", plain)

	return newRunner(cfg, host, log, programOpts...).Run(ctx)
}
