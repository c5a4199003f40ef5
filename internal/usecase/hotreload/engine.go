// Package hotreload is the hot-reload decision engine: a pure transition
// function from (Message, Model) to (Model, []Command).
//
// In-place patching only swaps already-declared behavior; code that ran at
// startup is never re-run. Patching is therefore only sound when the page was
// current the moment it connected (the server answered AlreadyUpToDate).
// Anything else forces a full reload.
package hotreload

import (
	"fmt"
	"time"

	"hotpatch/internal/domain"
	"hotpatch/internal/usecase/backoff"
)

// Engine holds the per-session constants the transition depends on.
type Engine struct {
	mode   domain.CompilationMode
	decode domain.FrameDecoder
}

// New creates an engine for a page compiled in mode. decode must be pure.
func New(mode domain.CompilationMode, decode domain.FrameDecoder) *Engine {
	return &Engine{mode: mode, decode: decode}
}

// Mode returns the compilation mode of the code currently on the page.
func (e *Engine) Mode() domain.CompilationMode { return e.mode }

// Init returns the starting model and the first connection attempt.
// compiledTimestamp identifies the artifact already loaded on the page.
func (e *Engine) Init(now time.Time, compiledTimestamp int64, expanded bool) (domain.Model, []domain.Command) {
	model := domain.Model{
		Status:                domain.Connecting{Date: now, Attempt: 1},
		LastCompiledTimestamp: compiledTimestamp,
		UIExpanded:            expanded,
	}
	return model, []domain.Command{domain.Reconnect{CompiledTimestamp: compiledTimestamp}}
}

// Update is the transition function. It never performs effects.
func (e *Engine) Update(msg domain.Message, model domain.Model) (domain.Model, []domain.Command) {
	switch msg := msg.(type) {
	case domain.WebSocketConnectedMsg:
		model.Status = domain.Busy{Date: msg.Date}
		return model, nil

	case domain.WebSocketClosedMsg:
		attempt := attemptOf(model.Status) + 1
		model.Status = domain.SleepingBeforeReconnect{Date: msg.Date, Attempt: attempt}
		return model, []domain.Command{domain.SleepBeforeReconnect{Attempt: attempt}}

	case domain.WebSocketMessageReceivedMsg:
		decoded, err := e.decode(msg.Data)
		if err != nil {
			model.Status = domain.UnexpectedError{Date: msg.Date, Message: err.Error()}
			model.UIExpanded = true
			return model, nil
		}
		return e.onServerMessage(msg.Date, decoded, model)

	case domain.SleepBeforeReconnectDoneMsg:
		return wake(model, msg.Date, false)

	case domain.PageVisibilityChangedToVisibleMsg:
		return wake(model, msg.Date, true)

	case domain.PressedReconnectNowMsg:
		return wake(model, msg.Date, true)

	case domain.FocusedTabMsg:
		if idle, ok := model.Status.(domain.Idle); ok {
			return model, []domain.Command{domain.NewSendMessage(idle.Key, domain.FocusedTab{})}
		}
		return model, nil

	case domain.ChangedCompilationModeMsg:
		idle, ok := model.Status.(domain.Idle)
		if !ok || !msg.Mode.IsWire() {
			return model, nil
		}
		model.Status = domain.Busy{Date: msg.Date, Mode: msg.Mode}
		return model, []domain.Command{
			domain.NewSendMessage(idle.Key, domain.ChangedCompilationMode{Mode: msg.Mode}),
		}

	case domain.EvalSucceededMsg:
		return model, nil

	case domain.EvalErroredMsg:
		model.Status = domain.EvalError{Date: msg.Date}
		model.UIExpanded = true
		return model, nil

	case domain.PressedChevronMsg:
		model.UIExpanded = !model.UIExpanded
		return model, nil

	default:
		panic(fmt.Sprintf("hotreload: unhandled message %T", msg))
	}
}

func (e *Engine) onServerMessage(date time.Time, msg domain.ServerMessage, model domain.Model) (domain.Model, []domain.Command) {
	switch msg := msg.(type) {
	case domain.StatusChanged:
		return onStatusChanged(date, msg.Status, model)

	case domain.SuccessfullyCompiled:
		if msg.CompilationMode != e.mode {
			return model, []domain.Command{domain.ReloadPage{
				Reason:            fmt.Sprintf("compilation mode changed from %s to %s.", e.mode, msg.CompilationMode),
				Mode:              msg.CompilationMode,
				CompiledTimestamp: msg.CompiledTimestamp,
			}}
		}
		if !model.CanHotReload {
			return model, []domain.Command{domain.ReloadPage{
				Reason:            "the page was not up to date when it connected, so the new code cannot be hot reloaded safely.",
				Mode:              msg.CompilationMode,
				CompiledTimestamp: msg.CompiledTimestamp,
			}}
		}
		model.Status = domain.NewIdle(date)
		model.LastCompiledTimestamp = msg.CompiledTimestamp
		return model, []domain.Command{domain.Evaluate{Code: msg.Code}}

	default:
		panic(fmt.Sprintf("hotreload: unhandled server message %T", msg))
	}
}

func onStatusChanged(date time.Time, status domain.BuildStatus, model domain.Model) (domain.Model, []domain.Command) {
	switch status := status.(type) {
	case domain.AlreadyUpToDate:
		model.Status = domain.NewIdle(date)
		model.CanHotReload = true
	case domain.BuildBusy:
		model.Status = domain.Busy{Date: date, Mode: status.Mode}
	case domain.BuildClientError:
		model.Status = domain.UnexpectedError{Date: date, Message: status.Message}
		model.UIExpanded = true
	case domain.BuildCompileError:
		model.Status = domain.CompileError{Date: date}
	default:
		panic(fmt.Sprintf("hotreload: unhandled build status %T", status))
	}
	return model, nil
}

// wake starts the next connection attempt if the model is sleeping and
// either the backoff has elapsed or the wake is forced.
func wake(model domain.Model, date time.Time, force bool) (domain.Model, []domain.Command) {
	sleeping, ok := model.Status.(domain.SleepingBeforeReconnect)
	if !ok {
		return model, nil
	}
	if !force && !backoff.Due(sleeping.Attempt, sleeping.Date, date) {
		return model, nil
	}
	model.Status = domain.Connecting{Date: date, Attempt: sleeping.Attempt}
	return model, []domain.Command{domain.Reconnect{CompiledTimestamp: model.LastCompiledTimestamp}}
}

// attemptOf returns the attempt carried by the status, or 0 for statuses
// reached through an established connection.
func attemptOf(s domain.Status) int {
	switch s := s.(type) {
	case domain.Connecting:
		return s.Attempt
	case domain.SleepingBeforeReconnect:
		return s.Attempt
	}
	return 0
}
