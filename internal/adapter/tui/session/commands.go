package session

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hotpatch/internal/adapter/page"
	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/introspect"
)

// evaluateCmd applies patched code on the page.
func evaluateCmd(ctx context.Context, host page.Host, code string, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		err := host.Evaluate(ctx, code)
		return EvalResultMsg{Date: now(), Err: err}
	}
}

// sleepCmd arms a backoff timer.
func sleepCmd(d time.Duration, now func() time.Time) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return SleepTickMsg{Date: now()}
	})
}

// introspectCmd classifies the programs currently on the page.
func introspectCmd(ctx context.Context, host page.Host, mode domain.CompilationMode) tea.Cmd {
	return func() tea.Msg {
		reg, err := host.Registry(ctx)
		if err != nil {
			return IntrospectedMsg{Result: domain.IntrospectionDecodeError{Message: err.Error()}}
		}
		return IntrospectedMsg{Result: introspect.Classify(reg, mode)}
	}
}

// reloadCmd closes the connection, waits for the close to complete, then
// reloads the page. A host that cannot fetch code itself gets build staged
// first.
func reloadCmd(conn Conn, host page.Host, build page.Artifact, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		closeErr := conn.CloseAndWait(ctx)
		if l, ok := host.(page.Loader); ok && build.Mode != "" {
			l.Load(build)
		}
		if err := host.Reload(ctx); err != nil {
			return ReloadedMsg{Err: err}
		}
		return ReloadedMsg{Err: closeErr}
	}
}

// closeCmd closes the connection before quitting.
func closeCmd(conn Conn, timeout time.Duration, log *slog.Logger) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := conn.CloseAndWait(ctx); err != nil {
			log.Warn("quit teardown", "error", err, "code", string(domain.ErrorCodeOf(err)))
		}
		return nil
	}
}
