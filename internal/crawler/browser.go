package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// Engine is one browser backend of the launch fallback chain.
type Engine struct {
	// Name is used in log lines ("Falha no <Name>").
	Name string
	// Attempt is logged before launching.
	Attempt string
	// ExecPaths lists candidate executables. Empty means let chromedp find
	// a Chromium build on its own.
	ExecPaths []string
}

func (e Engine) execPath() (string, error) {
	if len(e.ExecPaths) == 0 {
		return "", nil
	}
	for _, p := range e.ExecPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s executable not found", e.Name)
}

// DefaultEngines is the bundled Chromium followed by the installed Chrome
// and Edge channels. Explicit paths, when set, are tried first.
func DefaultEngines(chromePath, edgePath string) []Engine {
	return []Engine{
		{
			Name:    "Chromium padrão",
			Attempt: "Tentando abrir navegador padrão (Chromium)...",
		},
		{
			Name:    "Google Chrome",
			Attempt: "Tentando abrir Google Chrome instalado...",
			ExecPaths: []string{
				chromePath,
				"/usr/bin/google-chrome",
				"/usr/bin/google-chrome-stable",
				"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
				`C:\Program Files\Google\Chrome\Application\chrome.exe`,
				`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			},
		},
		{
			Name:    "Microsoft Edge",
			Attempt: "Tentando abrir Microsoft Edge instalado...",
			ExecPaths: []string{
				edgePath,
				"/usr/bin/microsoft-edge",
				"/usr/bin/microsoft-edge-stable",
				"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
				`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
				`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
			},
		},
	}
}

// Launcher starts a browser for one engine.
type Launcher interface {
	Launch(ctx context.Context, e Engine) (Session, error)
}

// Session is a running browser. Pages opened from it share its cookies.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab. Close must be safe to call more than once.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, script string) error
	WaitAttached(ctx context.Context, selector string, timeout time.Duration) error
	// Items returns the rendered text of every element matching selector
	// and the href of the first linkSelector match inside it.
	Items(ctx context.Context, selector, linkSelector string) ([]RawItem, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// openSession walks the engine chain and returns the first browser that
// starts.
func (s *Scraper) openSession(ctx context.Context) (Session, error) {
	var errs []error
	for _, e := range s.cfg.Engines {
		s.log.Info(e.Attempt, "engine", e.Name)

		sess, err := s.launcher.Launch(ctx, e)
		if err == nil {
			s.log.Info("browser opened", "engine", e.Name)
			return sess, nil
		}

		s.log.Warn(fmt.Sprintf("Falha no %s: %v", e.Name, err), "engine", e.Name)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrBrowserUnavailable, errors.Join(errs...))
}

// ChromeLauncher starts Chromium-family browsers through chromedp.
type ChromeLauncher struct {
	UserAgent     string
	Headless      bool
	LaunchTimeout time.Duration
	NavTimeout    time.Duration
}

// Launch starts the engine's browser. The launch is bounded by
// LaunchTimeout; the browser itself lives until the session is closed or
// ctx is cancelled.
func (l *ChromeLauncher) Launch(ctx context.Context, e Engine) (Session, error) {
	path, err := e.execPath()
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.UserAgent(l.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run starts the browser. It must not carry a deadline, or
	// the browser dies with it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(l.LaunchTimeout)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("launch: %w", err)
		}
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("launch: %w after %s", ErrPageTimeout, l.LaunchTimeout)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	return &chromeSession{
		ctx:        browserCtx,
		cancel:     cancel,
		userAgent:  l.UserAgent,
		navTimeout: l.NavTimeout,
	}, nil
}

type chromeSession struct {
	ctx        context.Context
	cancel     context.CancelFunc
	userAgent  string
	navTimeout time.Duration
}

func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tabCtx,
		emulation.SetUserAgentOverride(s.userAgent).WithAcceptLanguage("pt-BR,pt;q=0.9"),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel, navTimeout: s.navTimeout}, nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromePage struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab with a deadline, aborting early when the
// caller's ctx is done.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrPageTimeout, timeout, err)
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.navTimeout, chromedp.Navigate(url))
}

func (p *chromePage) Evaluate(ctx context.Context, script string) error {
	var ok bool
	return p.run(ctx, p.navTimeout, chromedp.Evaluate(script+"\ntrue;", &ok))
}

func (p *chromePage) WaitAttached(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Items(ctx context.Context, selector, linkSelector string) ([]RawItem, error) {
	sel, _ := json.Marshal(selector)
	link, _ := json.Marshal(linkSelector)
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(function (el) {
		var a = el.querySelector(%s);
		return {text: el.innerText || "", href: a ? (a.getAttribute("href") || "") : ""};
	})`, sel, link)

	var items []RawItem
	if err := p.run(ctx, p.navTimeout, chromedp.Evaluate(script, &items)); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.navTimeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		err := chromedp.Cancel(p.ctx)
		p.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = err
		}
	})
	return p.closeErr
}
