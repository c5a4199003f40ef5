// Package uxerror translates raw errors into user-friendly messages with
// recovery hints. The raw message is always kept and shown.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"hotpatch/internal/adapter/tui/theme"
	"hotpatch/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title string   // short heading, e.g. "Watch Server Unreachable"
	Hints []string // actionable recovery suggestions
	Raw   string   // original error text, shown verbatim
}

// Render formats the FriendlyError for display.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Raw != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Raw)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match func(err error) bool
	title string
	hints []string
}

var patterns = []errorPattern{
	// Domain sentinel errors (checked first so errors.Is works through wrapping).
	{
		match: is(domain.ErrNotReady),
		title: "Compiled Code Not Ready",
		hints: []string{"Wait for the first build to finish; the page reloads by itself"},
	},
	{
		match: is(domain.ErrEval),
		title: "Hot Reload Failed",
		hints: []string{"Reload the page to run the new code from scratch"},
	},
	{
		match: is(domain.ErrDecode),
		title: "Unexpected Message",
		hints: []string{"Make sure hotpatch and the watch server speak the same protocol version"},
	},
	{
		match: is(domain.ErrConfigLoad),
		title: "Configuration Error",
		hints: []string{"Check the config file path and its YAML syntax", "Run 'hotpatch doctor' to validate it"},
	},
	{
		match: is(domain.ErrPageBackend),
		title: "Browser Unavailable",
		hints: []string{"Check that Chrome is installed, or set page.cdp_url to a running browser", "Use page.backend: memory for a dry run"},
	},
	{
		match: is(domain.ErrReload),
		title: "Page Reload Failed",
		hints: []string{"Reload the page by hand"},
	},
	{
		match: is(domain.ErrInvalidMode),
		title: "Unknown Compilation Mode",
		hints: []string{"Use one of debug, standard or optimize"},
	},

	// Network patterns (string matching for external errors).
	{
		match: containsAny("connection refused", "dial tcp", "no such host"),
		title: "Watch Server Unreachable",
		hints: []string{"Start the watch server", "Verify server.host and server.port in config"},
	},
	{
		match: containsAny("deadline exceeded", "timeout"),
		title: "Timed Out",
		hints: []string{"Check that the watch server is responsive", "Increase the timeout in config"},
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return FriendlyError{Title: p.title, Hints: p.hints, Raw: err.Error()}
		}
	}
	return FriendlyError{Title: "Error", Raw: err.Error()}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}
