package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"hotpatch/internal/domain"
	"hotpatch/internal/infra/tracer"
	"hotpatch/internal/usecase/guard"
)

// ChromeDPConfig holds configuration for the chromedp backend.
type ChromeDPConfig struct {
	// URL is the page that loads the compiled program.
	URL string
	// RemoteURL is the CDP WebSocket endpoint of an already running Chrome.
	// If empty, a local Chrome instance is launched.
	RemoteURL string
	// Headless controls whether a locally launched Chrome runs headless.
	Headless bool
	// Timeout is the per-action timeout.
	Timeout time.Duration
	// RegistryGlobal names the page-global program registry.
	RegistryGlobal string
	// ArtifactGlobal names the page global describing the loaded build.
	ArtifactGlobal string
}

// bindingName is the CDP binding the page calls to report focus and visibility.
const bindingName = "__hotpatchEvent"

const bridgeScript = `(() => {
  const send = (kind) => { try { window.` + bindingName + `(kind); } catch (_) {} };
  window.addEventListener("focus", () => send("focused"));
  document.addEventListener("visibilitychange", () =>
    send(document.visibilityState === "visible" ? "visible" : "hidden"));
})();`

// ChromeDP is a Host backed by a Chrome tab driven over CDP.
type ChromeDP struct {
	mu            sync.Mutex
	cfg           ChromeDPConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	logger        *slog.Logger

	events  chan Event
	visible atomic.Bool
	closed  atomic.Bool
}

// NewChromeDP starts or attaches to Chrome, installs the page bridge and
// navigates to cfg.URL.
func NewChromeDP(cfg ChromeDPConfig, logger *slog.Logger) (*ChromeDP, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RegistryGlobal == "" {
		cfg.RegistryGlobal = "Programs"
	}
	if cfg.ArtifactGlobal == "" {
		cfg.ArtifactGlobal = "__hotpatch"
	}

	b := &ChromeDP{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, 16),
	}
	b.visible.Store(true)

	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		logger.Info("chromedp connecting to remote browser", "url", cfg.RemoteURL)
	} else {
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		logger.Info("chromedp launching local browser", "headless", cfg.Headless)
	}

	b.browserCtx, b.browserCancel = chromedp.NewContext(allocCtx)
	b.tabCtx, b.tabCancel = chromedp.NewContext(b.browserCtx)

	chromedp.ListenTarget(b.tabCtx, b.onTargetEvent)

	// chromedp binds the session to the context of the first Run, so the
	// startup run uses tabCtx itself and the timeout is enforced outside.
	startDone := make(chan error, 1)
	go func() {
		startDone <- chromedp.Run(b.tabCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				return runtime.AddBinding(bindingName).Do(ctx)
			}),
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := cdppage.AddScriptToEvaluateOnNewDocument(bridgeScript).Do(ctx)
				return err
			}),
			chromedp.Navigate(cfg.URL),
		)
	}()
	select {
	case err := <-startDone:
		if err != nil {
			b.Close()
			return nil, domain.NewDomainError("NewChromeDP", domain.ErrPageBackend, err.Error())
		}
	case <-time.After(cfg.Timeout):
		b.Close()
		return nil, domain.NewDomainError("NewChromeDP", domain.ErrPageBackend,
			fmt.Sprintf("start browser: timed out after %v", cfg.Timeout))
	}

	var visible bool
	if err := b.run(chromedp.Evaluate(`document.visibilityState === "visible"`, &visible)); err == nil {
		b.visible.Store(visible)
	}

	logger.Info("chromedp page ready", "url", cfg.URL)
	return b, nil
}

func (b *ChromeDP) onTargetEvent(ev any) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != bindingName {
		return
	}
	var kind EventKind
	switch called.Payload {
	case "focused":
		kind = EventFocused
	case "visible":
		kind = EventVisible
		b.visible.Store(true)
	case "hidden":
		kind = EventHidden
		b.visible.Store(false)
	default:
		b.logger.Warn("unknown page event", "payload", called.Payload)
		return
	}
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- Event{Kind: kind, Date: time.Now()}:
	default:
		b.logger.Warn("page event dropped", "kind", kind.String())
	}
}

// run executes actions on the tab with the per-action timeout.
func (b *ChromeDP) run(actions ...chromedp.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return domain.NewDomainError("ChromeDP", domain.ErrPageBackend, "closed")
	}
	tctx, cancel := context.WithTimeout(b.tabCtx, b.cfg.Timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

func (b *ChromeDP) Evaluate(ctx context.Context, code string) error {
	_, span := tracer.StartSpan(ctx, "page.evaluate", tracer.IntAttr("code_bytes", len(code)))
	defer span.End()

	err := b.run(chromedp.Evaluate(code, nil))
	var exc *runtime.ExceptionDetails
	switch {
	case err == nil:
		tracer.SetOK(span)
		return nil
	case errors.As(err, &exc):
		evalErr := &EvalError{Message: exc.Error()}
		tracer.RecordError(span, evalErr)
		return evalErr
	default:
		tracer.RecordError(span, err)
		return domain.WrapOp("ChromeDP.Evaluate", err)
	}
}

func (b *ChromeDP) Reload(ctx context.Context) error {
	_, span := tracer.StartSpan(ctx, "page.reload")
	defer span.End()

	if err := b.run(chromedp.Reload()); err != nil {
		tracer.RecordError(span, err)
		return domain.NewDomainError("ChromeDP.Reload", domain.ErrReload, err.Error())
	}
	tracer.SetOK(span)
	return nil
}

type wireArtifact struct {
	CompilationMode   string `json:"compilationMode"`
	CompiledTimestamp int64  `json:"compiledTimestamp"`
}

func (b *ChromeDP) Artifact(_ context.Context) (Artifact, error) {
	var raw string
	expr := fmt.Sprintf(`JSON.stringify(globalThis[%q] ?? null)`, b.cfg.ArtifactGlobal)
	if err := b.run(chromedp.Evaluate(expr, &raw)); err != nil {
		return Artifact{}, domain.WrapOp("ChromeDP.Artifact", err)
	}
	if raw == "" || raw == "null" {
		return Placeholder, nil
	}
	var w wireArtifact
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Artifact{}, domain.NewDomainError("ChromeDP.Artifact", domain.ErrDecode, err.Error())
	}
	mode, err := domain.ParseCompilationMode(w.CompilationMode)
	if err != nil {
		return Artifact{}, domain.WrapOp("ChromeDP.Artifact", err)
	}
	return Artifact{Mode: mode, CompiledTimestamp: w.CompiledTimestamp}, nil
}

// registryExpr serializes the registry, dropping functions so only the
// namespace structure and program descriptors remain.
const registryExpr = `JSON.stringify(globalThis[%q] ?? {}, (k, v) => typeof v === "function" ? undefined : v)`

func (b *ChromeDP) Registry(ctx context.Context) (guard.Object, error) {
	a, err := b.Artifact(ctx)
	if err != nil {
		return nil, err
	}

	var raw string
	err = b.run(chromedp.Evaluate(fmt.Sprintf(registryExpr, b.cfg.RegistryGlobal), &raw))
	if err != nil {
		var exc *runtime.ExceptionDetails
		if a.Mode == domain.ModePlaceholder && errors.As(err, &exc) {
			// The placeholder registry throws on every key lookup.
			return registryFor(nil, a), nil
		}
		return nil, domain.WrapOp("ChromeDP.Registry", err)
	}

	var tree map[string]any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, domain.NewDomainError("ChromeDP.Registry", domain.ErrDecode, err.Error())
	}
	return registryFor(tree, a), nil
}

func (b *ChromeDP) Events() <-chan Event { return b.events }

func (b *ChromeDP) Visible() bool { return b.visible.Load() }

func (b *ChromeDP) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if b.tabCancel != nil {
		b.tabCancel()
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.logger.Info("chromedp browser closed")
	return nil
}
