package session

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"hotpatch/internal/adapter/tui/theme"
	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/backoff"
	"hotpatch/internal/usecase/introspect"
)

func (s *Session) widgetWidth() int {
	if s.width <= 0 {
		return 0
	}
	return theme.Clamp(s.width-2, 20, theme.MaxContentWidth)
}

// View renders the status widget. It is a function of the model plus the
// session info shown in the expanded section.
func (s *Session) View() string {
	if s.model.Status == nil {
		return ""
	}
	now := s.deps.Now()

	symbol, style, text := s.statusLine(now)
	chevron := theme.SymbolCollapsed
	if s.model.UIExpanded {
		chevron = theme.SymbolExpanded
	}
	header := fmt.Sprintf("%s %s  %s", symbol, style.Render(text), theme.Dim.Render(chevron))

	var b strings.Builder
	b.WriteString(header)

	if s.shownReason != "" {
		b.WriteString("\n")
		b.WriteString(theme.Notice.Render("Reloaded: " + s.shownReason))
	}
	if s.notice != "" {
		b.WriteString("\n")
		b.WriteString(theme.Notice.Render(s.notice))
	}
	if s.model.UIExpanded {
		b.WriteString("\n\n")
		b.WriteString(s.details())
	}

	box := theme.Widget
	if isErrorStatus(s.model.Status) {
		box = theme.WidgetError
	}
	if w := s.widgetWidth(); w > 0 {
		box = box.Width(w)
	}

	s.statusBar.Mode = modeLabel(s.engine.Mode())
	return lipgloss.JoinVertical(lipgloss.Left, box.Render(b.String()), s.statusBar.View())
}

func (s *Session) statusLine(now time.Time) (string, lipgloss.Style, string) {
	switch st := s.model.Status.(type) {
	case domain.Connecting:
		if st.Attempt > 1 {
			return s.spinner.View(), theme.TextInfo, fmt.Sprintf("Connecting (attempt %d)", st.Attempt)
		}
		return s.spinner.View(), theme.TextInfo, "Connecting"
	case domain.Busy:
		if st.Mode != "" {
			return s.spinner.View(), theme.TextInfo, fmt.Sprintf("Compiling (%s)", st.Mode)
		}
		return s.spinner.View(), theme.TextInfo, "Waiting for compilation"
	case domain.Idle:
		return theme.SymbolSuccess, theme.TextSuccess, "Up to date"
	case domain.CompileError:
		return theme.SymbolError, theme.TextError, "Compilation error"
	case domain.EvalError:
		return theme.SymbolError, theme.TextError, "Hot reload failed"
	case domain.SleepingBeforeReconnect:
		left := backoff.Wait(st.Attempt) - now.Sub(st.Date)
		if left <= 0 {
			return theme.SymbolSleeping, theme.TextWarning, "Waiting to reconnect"
		}
		secs := int(math.Ceil(left.Seconds()))
		return theme.SymbolSleeping, theme.TextWarning, fmt.Sprintf("Disconnected, retrying in %ds", secs)
	case domain.UnexpectedError:
		return theme.SymbolError, theme.TextError, "Unexpected error"
	default:
		panic(fmt.Sprintf("session: unhandled status %T", st))
	}
}

func (s *Session) details() string {
	ts := s.model.LastCompiledTimestamp
	compiled := "never"
	if ts > 0 {
		compiled = time.UnixMilli(ts).Format("2006-01-02 15:04:05")
	}

	rows := [][2]string{
		{"Target", s.deps.Target},
		{"Server", s.conn.URL(ts)},
		{"Mode", modeLabel(s.engine.Mode())},
		{"Compiled", compiled},
	}
	if s.introspection != nil {
		rows = append(rows, [2]string{"Programs", introspect.Describe(s.introspection)})
	}

	var lines []string
	for _, r := range rows {
		lines = append(lines, theme.Label.Render(r[0])+theme.Value.Render(r[1]))
	}

	switch st := s.model.Status.(type) {
	case domain.UnexpectedError:
		lines = append(lines, "", theme.TextError.Render("Error"), st.Message)
	case domain.EvalError:
		lines = append(lines, "", theme.TextError.Render("The new code threw while being applied:"), s.evalMessage,
			theme.TextMuted.Render("Reload the page to recover."))
	case domain.CompileError:
		lines = append(lines, "", theme.TextMuted.Render("Compilation failed. See the watch server output for details."))
	}
	return strings.Join(lines, "\n")
}

func modeLabel(m domain.CompilationMode) string {
	if m == domain.ModePlaceholder {
		return "not compiled yet"
	}
	return string(m)
}

func isErrorStatus(st domain.Status) bool {
	switch st.(type) {
	case domain.CompileError, domain.EvalError, domain.UnexpectedError:
		return true
	}
	return false
}
