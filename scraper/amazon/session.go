package amazon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"price-tracker/config"
	"price-tracker/utils"
)

// ErrBlocked marks a session the storefront refused to render for,
// most likely an anti-bot challenge. Retrying later with a fresh session
// is the expected recovery; it is not a programming error.
var ErrBlocked = errors.New("amazon: storefront blocked or challenged")

type sessionState int

const (
	sessionUnstarted sessionState = iota
	sessionOpen
	sessionSearched
	sessionClosed
	sessionFailed
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Session owns one browser-page lifetime: open the storefront with any
// persisted cookies replayed, submit the search, hand out listing nodes,
// and on teardown capture the cookie jar and release the browser
// unconditionally.
type Session struct {
	cfg    *config.Config
	logger *utils.Logger
	jar    *CookieJar

	state       sessionState
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession creates an unstarted session. Open must be called before any
// other method.
func NewSession(cfg *config.Config, logger *utils.Logger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger,
		jar:    NewCookieJar(cfg.CookieJarPath),
		state:  sessionUnstarted,
	}
}

// Open acquires a fresh browser identity, replays the persisted cookie
// jar if one exists, navigates to the storefront root, and waits for the
// search control to render. If the control never appears the session is
// considered blocked: a diagnostic screenshot is captured and ErrBlocked
// returned.
func (s *Session) Open(parent context.Context) error {
	if s.state != sessionUnstarted {
		return fmt.Errorf("amazon: session already started")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent(userAgent),
	)
	if bin := findChromeBinary(s.cfg.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	s.ctx = ctx
	s.cancelAlloc = cancelAlloc
	s.cancelCtx = cancelCtx

	cookies, err := s.jar.Load()
	if err != nil {
		// A corrupt jar is absence-equivalent: proceed cookie-less.
		s.logger.Warn("[session] Cookie jar unreadable, starting cold: %v", err)
		cookies = nil
	}
	if len(cookies) > 0 {
		s.logger.Info("[session] Replaying %d persisted cookies", len(cookies))
	}

	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout())
	defer cancel()

	err = chromedp.Run(navCtx,
		s.restoreCookies(cookies),
		chromedp.Navigate(s.cfg.BaseURL),
		chromedp.WaitVisible(searchBoxSel, chromedp.ByQuery),
	)
	if err != nil {
		s.state = sessionFailed
		s.CaptureDiagnostic("blocked-search-box")
		s.logger.Warn("[session] Search control never rendered: %v", err)
		return fmt.Errorf("open storefront %s: %w", s.cfg.BaseURL, ErrBlocked)
	}

	s.state = sessionOpen
	return nil
}

// Search types the query into the search control, submits it, waits for
// the results navigation to settle, and pauses a randomized interval so
// request timing does not look machine-regular.
func (s *Session) Search(query string) error {
	if s.state != sessionOpen {
		return fmt.Errorf("amazon: search before open")
	}

	navCtx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.SendKeys(searchBoxSel, query+kb.Enter, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		s.state = sessionFailed
		s.CaptureDiagnostic("search-failed")
		s.logger.Warn("[session] Search for %q did not settle: %v", query, err)
		return fmt.Errorf("search %q: %w", query, ErrBlocked)
	}

	s.scrollToBottom()
	s.Jitter()

	s.state = sessionSearched
	return nil
}

// Listings waits for the listing container to appear, bounded, then
// enumerates all listing nodes on the current page.
func (s *Session) Listings() ([]ListingNode, error) {
	if s.state != sessionSearched {
		return nil, fmt.Errorf("amazon: listings before search")
	}

	waitCtx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(resultSel, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("listing container: %w", err)
	}

	return newDOMNode(s.ctx, nil).Children(resultSel), nil
}

// NextPage activates the next-page affordance if present and enabled.
// It reports false when the affordance is missing, the natural end of
// the result set.
func (s *Session) NextPage() (bool, error) {
	if s.state != sessionSearched {
		return false, fmt.Errorf("amazon: next page before search")
	}

	if len(newDOMNode(s.ctx, nil).Children(nextPageSel)) == 0 {
		return false, nil
	}

	navCtx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Click(nextPageSel, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("advance page: %w", err)
	}

	s.Jitter()
	return true, nil
}

// Close captures the current cookie jar (best-effort) and releases the
// browser context. It is safe on every exit path, including after Open
// failures, and must run even when crawling has already gone wrong so no
// OS-level browser process leaks.
func (s *Session) Close() {
	if s.state == sessionClosed {
		return
	}

	if s.ctx != nil && s.state != sessionUnstarted {
		s.persistCookies()
	}

	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	s.state = sessionClosed
}

// CaptureDiagnostic writes a full-page screenshot to the diagnostics
// directory, named by tag and timestamp. Failures are logged, never
// propagated: diagnostics are operator aids, not part of any contract.
func (s *Session) CaptureDiagnostic(tag string) {
	if s.ctx == nil {
		return
	}

	shotCtx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		s.logger.Warn("[session] Diagnostic screenshot failed: %v", err)
		return
	}

	if err := os.MkdirAll(s.cfg.DiagnosticsDir, 0755); err != nil {
		s.logger.Warn("[session] Cannot create diagnostics dir: %v", err)
		return
	}

	name := fmt.Sprintf("%s-%s.png", tag, time.Now().Format("20060102-150405"))
	path := filepath.Join(s.cfg.DiagnosticsDir, name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		s.logger.Warn("[session] Cannot write diagnostic %s: %v", path, err)
		return
	}
	s.logger.Warn("[session] Diagnostic screenshot saved: %s", path)
}

// Jitter sleeps a randomized short interval between navigations.
func (s *Session) Jitter() {
	min, max := s.cfg.JitterMinMs, s.cfg.JitterMaxMs
	if max <= min {
		max = min + 1
	}
	d := time.Duration(min+rand.Intn(max-min)) * time.Millisecond
	time.Sleep(d)
}

func (s *Session) navTimeout() time.Duration {
	return time.Duration(s.cfg.NavTimeoutSec) * time.Second
}

// restoreCookies injects persisted cookies before the first navigation.
// Per-cookie failures are tolerated: a stale cookie is not worth a failed
// session.
func (s *Session) restoreCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				param = param.WithExpires(&exp)
			}
			if c.SameSite != "" {
				param = param.WithSameSite(network.CookieSameSite(c.SameSite))
			}
			if err := param.Do(ctx); err != nil {
				s.logger.Debug("[session] Cookie %q not restored: %v", c.Name, err)
			}
		}
		return nil
	})
}

func (s *Session) persistCookies() {
	saveCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(saveCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithUrls([]string{s.cfg.BaseURL}).Do(ctx)
		return err
	}))
	if err != nil {
		s.logger.Warn("[session] Cookie capture failed: %v", err)
		return
	}

	if err := s.jar.Save(cookies); err != nil {
		s.logger.Warn("[session] Cookie jar not persisted: %v", err)
		return
	}
	s.logger.Debug("[session] Persisted %d cookies to %s", len(cookies), s.cfg.CookieJarPath)
}

// scrollToBottom nudges lazy-loaded result cards into the DOM by
// scrolling until the page height stops growing, bounded at five passes.
func (s *Session) scrollToBottom() {
	var lastHeight int64
	scrollCtx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	if err := chromedp.Run(scrollCtx,
		chromedp.Evaluate(`document.body.scrollHeight`, &lastHeight)); err != nil {
		return
	}

	for i := 0; i < 5; i++ {
		var height int64
		err := chromedp.Run(scrollCtx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(time.Second),
			chromedp.Evaluate(`document.body.scrollHeight`, &height),
		)
		if err != nil || height == lastHeight {
			return
		}
		lastHeight = height
	}
}

// findChromeBinary locates a Chrome/Chromium binary, preferring an
// explicit configuration over the PATH and well-known install locations.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
