package main

import (
	"context"
	"log/slog"

	"hotpatch/internal/adapter/page"
	"hotpatch/internal/infra/config"
)

// openPage creates the configured page backend.
func openPage(cfg *config.Config, log *slog.Logger) (page.Host, error) {
	log = log.With("component", "page")
	switch cfg.Page.Backend {
	case "memory":
		// The session stages each announced build on the page before
		// reloading it, so a dry run follows the server like a real tab.
		m := page.NewMemory()
		m.SetLogger(log)
		m.SetEvalHook(func(code string) error {
			log.Info("patch received", "bytes", len(code))
			return nil
		})
		m.OnReload(func(m *page.Memory) {
			a, err := m.Artifact(context.Background())
			if err != nil {
				return
			}
			log.Info("page reloaded", "mode", string(a.Mode), "compiled_timestamp", a.CompiledTimestamp)
		})
		return m, nil
	default:
		b, err := page.NewChromeDP(page.ChromeDPConfig{
			URL:            cfg.Page.URL,
			RemoteURL:      cfg.Page.CDPURL,
			Headless:       cfg.Page.Headless,
			Timeout:        config.Duration(cfg.Page.Timeout, 0),
			RegistryGlobal: cfg.Page.RegistryGlobal,
			ArtifactGlobal: cfg.Page.ArtifactGlobal,
		}, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}
