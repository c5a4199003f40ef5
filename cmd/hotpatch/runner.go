package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"hotpatch/internal/adapter/connection"
	"hotpatch/internal/adapter/page"
	"hotpatch/internal/adapter/protocol"
	"hotpatch/internal/adapter/tui/session"
	"hotpatch/internal/domain"
	"hotpatch/internal/infra/config"
)

const teardownTimeout = 5 * time.Second

// runner runs one session per page load. A session ends by reloading the
// page, after which the runner reads the new artifact and starts over.
type runner struct {
	cfg         *config.Config
	host        page.Host
	logger      *slog.Logger
	dial        func(emit connection.EmitFunc) session.Conn
	programOpts []tea.ProgramOption
	reloads     *rate.Limiter
}

func newRunner(cfg *config.Config, host page.Host, log *slog.Logger, programOpts ...tea.ProgramOption) *runner {
	endpoint := protocol.Endpoint{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: cfg.Server.Version,
		Target:  cfg.Target.Name,
	}
	opts := connection.Options{
		DialTimeout:  config.Duration(cfg.Connection.DialTimeout, 0),
		WriteTimeout: config.Duration(cfg.Connection.WriteTimeout, 0),
		ReadLimit:    int64(cfg.Connection.ReadLimitMB) << 20,
		QueueSize:    cfg.Connection.QueueSize,
	}
	connLog := log.With("component", "connection")

	return &runner{
		cfg:    cfg,
		host:   host,
		logger: log,
		dial: func(emit connection.EmitFunc) session.Conn {
			return connection.NewManager(endpoint, emit, connLog, opts)
		},
		programOpts: programOpts,
		reloads:     rate.NewLimiter(rate.Limit(cfg.Page.MaxReloadsPerMin)/60.0, cfg.Page.ReloadBurst),
	}
}

// Run blocks until the user quits, ctx is cancelled or a session fails.
func (r *runner) Run(ctx context.Context) error {
	var reason string
	for {
		artifact, err := r.host.Artifact(ctx)
		if err != nil {
			return fmt.Errorf("read page artifact: %w", err)
		}

		sess := session.New(session.Deps{
			Page:            r.host,
			Dial:            r.dial,
			Logger:          r.logger.With("component", "session"),
			Target:          r.cfg.Target.Name,
			Artifact:        artifact,
			Expanded:        r.cfg.UI.Expanded,
			ReloadReason:    reason,
			TeardownTimeout: teardownTimeout,
		})
		opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, r.programOpts...)
		p := tea.NewProgram(sess, opts...)
		sess.SetProgramSender(p.Send)

		if _, err := p.Run(); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
			if cerr := sess.Close(closeCtx); cerr != nil {
				r.logger.Debug("close after kill", "error", cerr)
			}
			cancel()
			if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
				return nil
			}
			return fmt.Errorf("run session: %w", err)
		}

		if !sess.Reloaded() {
			return nil
		}
		if err := sess.ReloadErr(); err != nil {
			if errors.Is(err, domain.ErrReload) {
				return err
			}
			r.logger.Warn("closing the connection before reload failed", "error", err)
		}
		if !r.reloads.Allow() {
			return domain.NewDomainError("runner", domain.ErrReload, fmt.Sprintf(
				"page reloaded more than %d times a minute; does the bundle set %s?",
				r.cfg.Page.MaxReloadsPerMin, r.cfg.Page.ArtifactGlobal))
		}

		reason = sess.ReloadReason()
		r.logger.Info("page reloaded", "reason", reason)
	}
}
