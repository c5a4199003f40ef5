package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"

	"hotpatch/internal/adapter/connection"
	"hotpatch/internal/adapter/page"
	"hotpatch/internal/adapter/protocol"
	"hotpatch/internal/adapter/tui/components"
	"hotpatch/internal/adapter/tui/theme"
	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/backoff"
	"hotpatch/internal/usecase/hotreload"
)

// Ensure *Session satisfies tea.Model.
var _ tea.Model = (*Session)(nil)

// Conn is the connection manager as used by a session.
type Conn interface {
	Open(ctx context.Context, compiledTimestamp int64) ulid.ULID
	Send(ctx context.Context, key domain.SendKey, msg domain.ClientMessage) error
	CloseAndWait(ctx context.Context) error
	Current() ulid.ULID
	URL(compiledTimestamp int64) string
}

var _ Conn = (*connection.Manager)(nil)

// Deps are dependencies for a session.
type Deps struct {
	Page page.Host
	// Dial creates the session's connection manager reporting to emit.
	Dial   func(emit connection.EmitFunc) Conn
	Logger *slog.Logger
	Target string
	// Artifact is what the page had loaded when the session started.
	Artifact page.Artifact
	Expanded bool
	// ReloadReason explains why the previous session reloaded the page.
	ReloadReason    string
	Now             func() time.Time
	TeardownTimeout time.Duration
}

// Session is the root Bubble Tea model for one page session. A session ends
// when it reloads the page or the user quits; the caller then decides
// whether to start a fresh one.
type Session struct {
	deps   Deps
	logger *slog.Logger
	engine *hotreload.Engine
	model  domain.Model

	// Mutable context, created once by initMutable.
	send         func(tea.Msg)
	conn         Conn
	ctx          context.Context
	stopListener context.CancelFunc

	spinner   spinner.Model
	statusBar components.StatusBarModel
	width     int

	introspection domain.IntrospectionResult
	evalMessage   string
	notice        string
	shownReason   string

	stopped   bool
	quitting  bool
	reloaded  bool
	reloadErr error
	reason    string
}

// New creates a session. Call SetProgramSender before running it.
func New(deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TeardownTimeout <= 0 {
		deps.TeardownTimeout = 5 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	sb := components.NewStatusBar()
	sb.Target = deps.Target
	sb.Hints = defaultHints()

	return &Session{
		deps:        deps,
		logger:      deps.Logger.With("target", deps.Target),
		engine:      hotreload.New(deps.Artifact.Mode, protocol.Decode),
		spinner:     s,
		statusBar:   sb,
		shownReason: deps.ReloadReason,
	}
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "enter", Desc: "details"},
		{Key: "r", Desc: "reconnect"},
		{Key: "d/s/o", Desc: "mode"},
		{Key: "q", Desc: "quit"},
	}
}

// SetProgramSender creates the session's mutable context: the connection
// manager and the page listener, both reporting through send.
// Must be called before Run().
func (s *Session) SetProgramSender(send func(tea.Msg)) {
	s.initMutable(send)
}

func (s *Session) initMutable(send func(tea.Msg)) {
	s.send = send
	s.ctx, s.stopListener = context.WithCancel(context.Background())
	s.conn = s.deps.Dial(func(e connection.Event) { send(ConnEventMsg{Event: e}) })
	go s.listen(s.ctx)
}

// listen forwards page events until the session is torn down.
func (s *Session) listen(ctx context.Context) {
	events := s.deps.Page.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			s.send(PageEventMsg{Event: ev})
		}
	}
}

// Init starts the first connection attempt.
func (s *Session) Init() tea.Cmd {
	if s.send == nil {
		s.initMutable(func(tea.Msg) {})
	}
	model, cmds := s.engine.Init(s.deps.Now(), s.deps.Artifact.CompiledTimestamp, s.deps.Expanded)
	s.model = model
	s.logger.Info("session started",
		"mode", string(s.engine.Mode()),
		"compiled_timestamp", s.deps.Artifact.CompiledTimestamp)
	if s.shownReason != "" {
		s.logger.Info("page was reloaded", "reason", s.shownReason)
	}

	out := []tea.Cmd{s.spinner.Tick}
	out = append(out, s.runCmds(cmds)...)
	return tea.Batch(out...)
}

// Update handles all incoming messages.
func (s *Session) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if rm, ok := msg.(ReloadedMsg); ok {
		s.reloaded = true
		s.reloadErr = rm.Err
		if rm.Err != nil {
			s.logger.Warn("reload teardown", "error", rm.Err)
		}
		return s, tea.Quit
	}
	if s.stopped {
		return s, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.statusBar.SetWidth(s.widgetWidth())
		return s, nil

	case tea.KeyMsg:
		return s.onKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case ConnEventMsg:
		if msg.Event.ConnID != s.conn.Current() {
			s.logger.Debug("dropping event from superseded connection", "conn_id", msg.Event.ConnID.String())
			return s, nil
		}
		return s.dispatch(msg.Event.Msg)

	case PageEventMsg:
		switch msg.Event.Kind {
		case page.EventFocused:
			return s.dispatch(domain.FocusedTabMsg{})
		case page.EventVisible:
			return s.dispatch(domain.PageVisibilityChangedToVisibleMsg{Date: msg.Event.Date})
		}
		return s, nil

	case SleepTickMsg:
		if !s.deps.Page.Visible() {
			s.logger.Debug("backoff timer fired while page hidden")
			return s, nil
		}
		return s.dispatch(domain.SleepBeforeReconnectDoneMsg{Date: msg.Date})

	case EvalResultMsg:
		if msg.Err != nil {
			s.evalMessage = msg.Err.Error()
			return s.dispatch(domain.EvalErroredMsg{Date: msg.Date, Message: msg.Err.Error()})
		}
		return s.dispatch(domain.EvalSucceededMsg{})

	case IntrospectedMsg:
		s.introspection = msg.Result
		return s, nil
	}

	return s, nil
}

func (s *Session) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		s.quitting = true
		s.stopped = true
		s.stopListener()
		return s, tea.Sequence(closeCmd(s.conn, s.deps.TeardownTimeout, s.logger), tea.Quit)
	case "enter", " ":
		return s.dispatch(domain.PressedChevronMsg{})
	case "r":
		return s.dispatch(domain.PressedReconnectNowMsg{Date: s.deps.Now()})
	case "d":
		return s.changeMode(domain.ModeDebug)
	case "s":
		return s.changeMode(domain.ModeStandard)
	case "o":
		return s.changeMode(domain.ModeOptimize)
	}
	return s, nil
}

func (s *Session) changeMode(mode domain.CompilationMode) (tea.Model, tea.Cmd) {
	s.notice = ""
	if mode == s.engine.Mode() {
		return s, nil
	}
	if mode == domain.ModeDebug && !domain.DebuggerAllowed(s.introspection) {
		s.notice = debuggerReason(s.introspection)
		return s, nil
	}
	return s.dispatch(domain.ChangedCompilationModeMsg{Date: s.deps.Now(), Mode: mode})
}

func debuggerReason(r domain.IntrospectionResult) string {
	if st, ok := r.(domain.DebuggerModeStatus); ok {
		if d, ok := st.Mode.(domain.DebuggerDisabled); ok {
			return d.Reason
		}
	}
	return ""
}

// dispatch runs each message through the engine in order and executes the
// resulting commands, then refreshes introspection.
func (s *Session) dispatch(msgs ...domain.Message) (tea.Model, tea.Cmd) {
	var out []tea.Cmd
	for _, m := range msgs {
		prev := s.model.Status
		var cmds []domain.Command
		s.model, cmds = s.engine.Update(m, s.model)
		s.logTransition(prev, s.model.Status)
		out = append(out, s.runCmds(cmds)...)
		if s.stopped {
			return s, tea.Batch(out...)
		}
	}
	if _, ok := s.model.Status.(domain.Idle); ok {
		s.shownReason = ""
	}
	out = append(out, introspectCmd(s.ctx, s.deps.Page, s.engine.Mode()))
	return s, tea.Batch(out...)
}

// runCmds executes commands in order. Effects that would block run as
// tea.Cmds and report back as messages.
func (s *Session) runCmds(cmds []domain.Command) []tea.Cmd {
	var out []tea.Cmd
	for _, c := range cmds {
		if s.stopped {
			break
		}
		if cmd := s.runCmd(c); cmd != nil {
			out = append(out, cmd)
		}
	}
	return out
}

func (s *Session) runCmd(c domain.Command) tea.Cmd {
	switch c := c.(type) {
	case domain.Evaluate:
		s.logger.Info("hot reloading", "bytes", len(c.Code))
		return evaluateCmd(s.ctx, s.deps.Page, c.Code, s.deps.Now)

	case domain.Reconnect:
		id := s.conn.Open(s.ctx, c.CompiledTimestamp)
		s.logger.Debug("connecting", "conn_id", id.String(), "url", s.conn.URL(c.CompiledTimestamp))
		return introspectCmd(s.ctx, s.deps.Page, s.engine.Mode())

	case domain.ReloadPage:
		s.logger.Info("reloading page", "reason", c.Reason)
		s.reason = c.Reason
		s.stopped = true
		s.stopListener()
		build := page.Artifact{Mode: c.Mode, CompiledTimestamp: c.CompiledTimestamp}
		return reloadCmd(s.conn, s.deps.Page, build, s.deps.TeardownTimeout)

	case domain.SendMessage:
		if err := s.conn.Send(s.ctx, c.Key(), c.Message()); err != nil {
			s.logger.Warn("send failed", "error", err, "code", string(domain.ErrorCodeOf(err)))
		}
		return nil

	case domain.SleepBeforeReconnect:
		wait := backoff.Wait(c.Attempt)
		s.logger.Debug("sleeping before reconnect", "attempt", c.Attempt, "wait", wait)
		return sleepCmd(wait, s.deps.Now)

	default:
		panic(fmt.Sprintf("session: unhandled command %T", c))
	}
}

func (s *Session) logTransition(prev, next domain.Status) {
	if prev != nil && prev.Tag() == next.Tag() {
		return
	}
	attrs := []any{"status", next.Tag()}
	if prev != nil {
		attrs = append(attrs, "from", prev.Tag())
	}
	switch st := next.(type) {
	case domain.Connecting:
		attrs = append(attrs, "attempt", st.Attempt)
	case domain.SleepingBeforeReconnect:
		attrs = append(attrs, "attempt", st.Attempt, "wait", backoff.Wait(st.Attempt))
	case domain.Busy:
		if st.Mode != "" {
			attrs = append(attrs, "mode", string(st.Mode))
		}
	case domain.UnexpectedError:
		s.logger.Warn("unexpected error", "message", st.Message)
	case domain.EvalError:
		s.logger.Warn("hot reload failed", "message", s.evalMessage)
	}
	s.logger.Info("status changed", attrs...)
}

// Close stops the page listener and closes the connection. The program
// calls this itself on quit and reload; callers use it when the program
// was killed instead.
func (s *Session) Close(ctx context.Context) error {
	if s.stopListener != nil {
		s.stopListener()
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.CloseAndWait(ctx)
}

// Model returns the current state-machine model.
func (s *Session) Model() domain.Model { return s.model }

// Introspection returns the latest program classification, or nil.
func (s *Session) Introspection() domain.IntrospectionResult { return s.introspection }

// Reloaded reports whether the session ended by reloading the page.
func (s *Session) Reloaded() bool { return s.reloaded }

// ReloadReason returns why the session reloaded the page.
func (s *Session) ReloadReason() string { return s.reason }

// ReloadErr returns the teardown or reload error, if any.
func (s *Session) ReloadErr() error { return s.reloadErr }

// Quitting reports whether the user asked to quit.
func (s *Session) Quitting() bool { return s.quitting }
