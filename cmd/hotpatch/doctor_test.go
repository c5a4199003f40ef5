package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"hotpatch/internal/infra/config"
)

func TestCheckConfigFile_NotFound(t *testing.T) {
	result := checkConfigFile("/nonexistent/path/hotpatch.yaml", nil)(nil)
	if result.Status != StatusWarn {
		t.Errorf("expected WARN for missing config, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion for missing config")
	}
}

func TestCheckConfigFile_LoadError(t *testing.T) {
	result := checkConfigFile("hotpatch.yaml", &config.ValidationError{Errors: []string{"server.port bad"}})(nil)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for load error, got %s", result.Status)
	}
	if !strings.Contains(result.Message, "server.port bad") {
		t.Errorf("message should keep the raw error: %q", result.Message)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion from the error hints")
	}
}

func TestCheckConfigFile_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotpatch.yaml")
	if err := os.WriteFile(path, []byte("target:\n  name: app\n"), 0600); err != nil {
		t.Fatal(err)
	}
	result := checkConfigFile(path, nil)(nil)
	if result.Status != StatusPass {
		t.Errorf("expected PASS, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckWatchServer_UpToDate(t *testing.T) {
	srv := startFakeWatchServer(t, upToDateFrame)
	result := checkWatchServer(testConfig(srv.port))
	if result.Status != StatusPass {
		t.Fatalf("expected PASS, got %s: %s", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "up to date") {
		t.Errorf("message = %q", result.Message)
	}
	q := <-srv.queries
	if q.Get("compiledTimestamp") != "0" || q.Get("target") != "main" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestCheckWatchServer_Compiled(t *testing.T) {
	srv := startFakeWatchServer(t, optimizeFrame)
	result := checkWatchServer(testConfig(srv.port))
	if result.Status != StatusPass || !strings.Contains(result.Message, "optimize mode") {
		t.Errorf("got %s: %s", result.Status, result.Message)
	}
}

func TestCheckWatchServer_BadFrame(t *testing.T) {
	srv := startFakeWatchServer(t, `{"tag":"Nope"}`)
	result := checkWatchServer(testConfig(srv.port))
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for undecodable frame, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckWatchServer_Unreachable(t *testing.T) {
	srv := startFakeWatchServer(t, upToDateFrame)
	cfg := testConfig(srv.port)
	cfg.Server.Port = 1
	result := checkWatchServer(cfg)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL, got %s", result.Status)
	}
}

func TestCheckWatchServer_NilConfig(t *testing.T) {
	if result := checkWatchServer(nil); result.Status != StatusFail {
		t.Errorf("expected FAIL for nil config, got %s", result.Status)
	}
}

func TestCheckBrowser_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.Page.Backend = "memory"
	if result := checkBrowser(cfg); result.Status != StatusPass {
		t.Errorf("expected PASS for memory backend, got %s", result.Status)
	}
}

func TestCheckBrowser_RemoteUnreachable(t *testing.T) {
	cfg := config.Defaults()
	cfg.Page.CDPURL = "ws://127.0.0.1:1/devtools/browser/x"
	result := checkBrowser(cfg)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL, got %s: %s", result.Status, result.Message)
	}
}

func TestCheckLogOutput(t *testing.T) {
	cfg := config.Defaults()
	cfg.Logger.Output = filepath.Join(t.TempDir(), "logs", "hotpatch.log")
	if result := checkLogOutput(cfg); result.Status != StatusPass {
		t.Errorf("expected PASS, got %s: %s", result.Status, result.Message)
	}
}

func TestRunDoctorReport(t *testing.T) {
	srv := startFakeWatchServer(t, upToDateFrame)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hotpatch.yaml")
	content := "server:\n  host: 127.0.0.1\n  port: " + strconv.Itoa(srv.port) + "\npage:\n  backend: memory\nlogger:\n  output: stderr\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOTPATCH_CONFIG", cfgPath)

	var buf bytes.Buffer
	if err := runDoctor(&buf); err != nil {
		t.Fatalf("runDoctor: %v\n%s", err, buf.String())
	}
	out := buf.String()
	if !strings.Contains(out, "Results: 4 passed, 0 warnings, 0 failed") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestStatusIcon(t *testing.T) {
	tests := map[CheckStatus]string{
		StatusPass: "[PASS]",
		StatusWarn: "[WARN]",
		StatusFail: "[FAIL]",
		"other":    "[????]",
	}
	for status, want := range tests {
		if got := statusIcon(status); got != want {
			t.Errorf("statusIcon(%q) = %q, want %q", status, got, want)
		}
	}
}
