package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"hotpatch/internal/adapter/protocol"
	"hotpatch/internal/adapter/tui/uxerror"
	"hotpatch/internal/domain"
	"hotpatch/internal/infra/config"
	"hotpatch/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

const doctorTimeout = 5 * time.Second

// runDoctor executes all health checks and reports results to w.
func runDoctor(w io.Writer) error {
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Watch server", Fn: checkWatchServer},
		{Name: "Browser", Fn: checkBrowser},
		{Name: "Log output", Fn: checkLogOutput},
	}

	fmt.Fprintln(w, "hotpatch doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn == 0 {
		fmt.Fprintln(w, "\nAll checks passed! hotpatch is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// failFrom builds a failing result whose fix comes from the error's hints.
func failFrom(err error) CheckResult {
	fe := uxerror.Humanize(err)
	r := CheckResult{Status: StatusFail, Message: err.Error()}
	if len(fe.Hints) > 0 {
		r.Fix = fe.Hints[0]
	}
	return r
}

func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return failFrom(domain.NewDomainError("config.Load", domain.ErrConfigLoad, cfgErr.Error()))
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
				Fix:     "Create hotpatch.yaml or pass --config",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkWatchServer dials the server once and decodes its first frame.
func checkWatchServer(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "skipped: config did not load"}
	}
	endpoint := protocol.Endpoint{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: cfg.Server.Version,
		Target:  cfg.Target.Name,
	}
	u := endpoint.URL(0)

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return failFrom(fmt.Errorf("dial %s: %w", u, err))
	}
	defer ws.Close(websocket.StatusNormalClosure, "doctor done")
	ws.SetReadLimit(int64(cfg.Connection.ReadLimitMB) << 20)

	_, data, err := ws.Read(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("connected to %s but no message arrived: %v", u, err),
			Fix:     "Check that the watch server builds target " + strconv.Quote(cfg.Target.Name),
		}
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return failFrom(err)
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("connected to %s, server says: %s", u, describeServerMessage(msg)),
	}
}

func describeServerMessage(msg domain.ServerMessage) string {
	switch m := msg.(type) {
	case domain.SuccessfullyCompiled:
		return fmt.Sprintf("compiled in %s mode (%d bytes)", m.CompilationMode, len(m.Code))
	case domain.StatusChanged:
		switch st := m.Status.(type) {
		case domain.AlreadyUpToDate:
			return "up to date"
		case domain.BuildBusy:
			return fmt.Sprintf("compiling in %s mode", st.Mode)
		case domain.BuildCompileError:
			return "compilation error"
		case domain.BuildClientError:
			return "client error: " + st.Message
		default:
			panic(fmt.Sprintf("doctor: unhandled build status %T", st))
		}
	default:
		panic(fmt.Sprintf("doctor: unhandled server message %T", m))
	}
}

// checkBrowser checks that a browser is reachable or installed.
func checkBrowser(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "skipped: config did not load"}
	}
	if cfg.Page.Backend == "memory" {
		return CheckResult{Status: StatusPass, Message: "memory page backend, no browser required"}
	}

	if cfg.Page.CDPURL != "" {
		u, err := url.Parse(cfg.Page.CDPURL)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid page.cdp_url: %v", err)}
		}
		var d net.Dialer
		ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
		defer cancel()
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("cannot reach Chrome at %s: %v", u.Host, err),
				Fix:     "Start Chrome with --remote-debugging-port and copy its ws:// URL",
			}
		}
		conn.Close()
		return CheckResult{Status: StatusPass, Message: "Chrome reachable at " + u.Host}
	}

	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("found %s at %s", name, path),
			}
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: "no Chrome or Chromium found in PATH",
		Fix:     "Install Chromium, set page.cdp_url, or use page.backend: memory",
	}
}

func checkLogOutput(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "skipped: config did not load"}
	}
	_, closer, err := logger.New(cfg.Logger)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Set logger.output to a writable file, stdout or stderr",
		}
	}
	closer()
	return CheckResult{Status: StatusPass, Message: "logging to " + cfg.Logger.Output}
}
