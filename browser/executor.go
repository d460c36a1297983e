package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/clock"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/security"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/validate"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("browser closed")
	// ErrBadCredentials is returned when Instagram rejects the login form.
	ErrBadCredentials = errors.New("login rejected")
	// ErrChallenge is returned when Instagram asks for a verification step.
	ErrChallenge = errors.New("verification challenge required")
)

const (
	loginPoll     = 2 * time.Second
	probeTimeout  = 10 * time.Second
	replyTimeout  = 5 * time.Second
	dialogRetries = 2
)

var (
	storyOpenDelay = clock.Range{Min: time.Second, Max: 2 * time.Second}
	searchDelay    = clock.Range{Min: 2 * time.Second, Max: 3 * time.Second}
)

// Credentials identify the account an Executor logs in as.
type Credentials struct {
	Username string
	Password string
	// Proxy is optional.
	Proxy *validate.Proxy
}

// Executor drives one Chrome instance for one account. Calls must not be
// made concurrently; the runner processes an account's targets sequentially.
type Executor struct {
	creds   Credentials
	cfg     Config
	cookies *CookieStore
	clock   clock.Clock
	rnd     *rand.Rand
	logger  *slog.Logger

	mu          sync.Mutex
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closed      bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock sets the clock used for pauses between page actions.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		e.clock = c
	}
}

// WithRand sets the random source for pauses.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Executor) {
		e.rnd = rnd
	}
}

// WithCookieDir saves the session cookies under dir and reuses them on the
// next Login.
func WithCookieDir(dir string) Option {
	return func(e *Executor) {
		e.cookies = NewCookieStore(CookiePath(dir, e.creds.Username))
	}
}

// NewExecutor creates an Executor for creds. Chrome is started by Login.
func NewExecutor(creds Credentials, cfg Config, opts ...Option) *Executor {
	cfg.SetDefaults()
	e := &Executor{
		creds:  creds,
		cfg:    cfg,
		clock:  clock.Real{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.logger = e.logger.With("component", "browser", "account", creds.Username)
	return e
}

// Login starts Chrome, reuses saved cookies when they still hold a session
// and otherwise submits the login form.
func (e *Executor) Login(ctx context.Context) error {
	if err := e.start(ctx); err != nil {
		return err
	}

	if e.cookies != nil {
		if cookies, ok := e.cookies.Valid(e.clock.Now()); ok {
			if err := e.run(ctx, setCookies(cookies), chromedp.Navigate(baseURL+"/")); err == nil && e.probe(ctx, HomeIndicator) {
				e.logger.Info("Reused saved session")
				return nil
			}
			e.logger.Info("Saved session no longer valid, logging in")
		}
	}

	e.logger.Info("Logging in")
	err := e.run(ctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(UsernameInput, chromedp.ByQuery),
		chromedp.SendKeys(UsernameInput, e.creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(PasswordInput, e.creds.Password, chromedp.ByQuery),
		chromedp.Click(SubmitButton, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	if err := e.waitForLogin(ctx); err != nil {
		return err
	}

	e.dismissDialogs(ctx)
	e.saveCookies(ctx)
	e.logger.Info("Logged in")
	return nil
}

func (e *Executor) waitForLogin(ctx context.Context) error {
	start := e.clock.Now()
	for e.clock.Since(start) < e.cfg.PageTimeout {
		if err := e.clock.Sleep(ctx, loginPoll); err != nil {
			return err
		}
		var location string
		if err := e.run(ctx, chromedp.Location(&location)); err != nil {
			continue
		}
		switch loginStateOf(location) {
		case loginDone:
			return nil
		case loginChallenge:
			return fmt.Errorf("%w at %s", ErrChallenge, location)
		}
		var rejected bool
		if err := e.run(ctx, chromedp.Evaluate(existsScript(LoginError), &rejected)); err == nil && rejected {
			var text string
			_ = e.run(ctx, chromedp.Text(LoginError, &text, chromedp.ByQuery))
			return fmt.Errorf("%w: %s", ErrBadCredentials, text)
		}
	}
	return fmt.Errorf("login did not complete within %s", e.cfg.PageTimeout)
}

func (e *Executor) dismissDialogs(ctx context.Context) {
	for range dialogRetries {
		var clicked bool
		if err := e.runTimeout(ctx, probeTimeout, chromedp.Evaluate(clickTextScript(dismissLabels), &clicked)); err != nil || !clicked {
			return
		}
		e.logger.Debug("Dismissed dialog")
		if err := e.clock.Sleep(ctx, time.Second); err != nil {
			return
		}
	}
}

// LikePosts opens target's profile, collects its most recent posts and likes
// up to count of them. Posts that are already liked are skipped.
func (e *Executor) LikePosts(ctx context.Context, target string, count int) (int, error) {
	if err := e.run(ctx, chromedp.Navigate(profileURL(target)), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return 0, fmt.Errorf("opening profile %s: %w", target, err)
	}
	if err := e.pause(ctx, actions.LikePosts); err != nil {
		return 0, err
	}

	var hrefs []string
	if err := e.run(ctx, chromedp.Evaluate(linksScript(PostLink), &hrefs)); err != nil {
		return 0, fmt.Errorf("collecting posts of %s: %w", target, err)
	}
	links := postLinks(hrefs, count)
	if len(links) == 0 {
		e.logger.Warn("No posts found", "target", target)
		return 0, nil
	}

	liked := 0
	for i, link := range links {
		var res string
		err := e.run(ctx,
			chromedp.Navigate(link),
			chromedp.WaitVisible(PostArticle, chromedp.ByQuery),
			chromedp.Evaluate(likeScript(PostArticle), &res),
		)
		switch {
		case err != nil:
			e.logger.Warn("Post did not load", "target", target, "post", i+1, "error", err)
		case res == likeClicked:
			liked++
			e.logger.Info("Liked post", "target", target, "post", i+1)
		case res == likeAlready:
			e.logger.Info("Post already liked", "target", target, "post", i+1)
		default:
			e.logger.Warn("Like button not found", "target", target, "post", i+1)
		}
		if err := e.pause(ctx, actions.LikePosts); err != nil {
			return liked, err
		}
	}
	return liked, nil
}

// InteractWithStory opens target's story from the profile header, likes it
// and sends req.Reply when set. The story viewer is left open.
func (e *Executor) InteractWithStory(ctx context.Context, target string, req actions.StoryRequest) (actions.StoryResult, error) {
	var res actions.StoryResult
	if err := e.run(ctx, chromedp.Navigate(profileURL(target)), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return res, fmt.Errorf("opening profile %s: %w", target, err)
	}
	if err := e.pause(ctx, actions.StoryInteraction); err != nil {
		return res, err
	}

	var clicked bool
	if err := e.run(ctx, chromedp.Evaluate(clickSelectorScript(StoryRing), &clicked)); err != nil {
		return res, fmt.Errorf("opening story of %s: %w", target, err)
	}
	if !clicked {
		return res, nil
	}
	if err := e.clock.Sleep(ctx, storyOpenDelay.Pick(e.rnd)); err != nil {
		return res, err
	}
	var location string
	if err := e.run(ctx, chromedp.Location(&location)); err != nil || !storyOpened(location) {
		return res, nil
	}
	res.Found = true

	if req.Like {
		var out string
		if err := e.run(ctx, chromedp.Evaluate(likeScript("body"), &out)); err != nil {
			e.logger.Warn("Story like failed", "target", target, "error", err)
		}
		res.Liked = out == likeClicked
	}
	if req.Reply != "" {
		err := e.runTimeout(ctx, replyTimeout,
			chromedp.WaitVisible(StoryReply, chromedp.ByQuery),
			chromedp.Click(StoryReply, chromedp.ByQuery),
			chromedp.SendKeys(StoryReply, req.Reply+kb.Enter, chromedp.ByQuery),
		)
		if err != nil {
			e.logger.Warn("Story reply failed", "target", target, "error", err)
		} else {
			res.Replied = true
		}
	}
	return res, nil
}

// SendDirectMessage opens the new message dialog, picks target and sends
// message. It returns false without an error when target cannot be found.
func (e *Executor) SendDirectMessage(ctx context.Context, target, message string) (bool, error) {
	err := e.run(ctx,
		chromedp.Navigate(newDirectURL),
		chromedp.WaitVisible(DirectSearch, chromedp.ByQuery),
		chromedp.SendKeys(DirectSearch, target, chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("opening new message dialog: %w", err)
	}
	if err := e.clock.Sleep(ctx, searchDelay.Pick(e.rnd)); err != nil {
		return false, err
	}

	var picked bool
	if err := e.run(ctx, chromedp.Evaluate(pickUserScript(target), &picked)); err != nil {
		return false, fmt.Errorf("selecting recipient: %w", err)
	}
	if !picked {
		e.logger.Warn("Recipient not found", "target", target)
		return false, nil
	}
	var next bool
	if err := e.run(ctx, chromedp.Evaluate(clickTextScript(nextLabels), &next)); err != nil || !next {
		return false, err
	}

	err = e.run(ctx,
		chromedp.WaitVisible(DirectMessage, chromedp.ByQuery),
		chromedp.Click(DirectMessage, chromedp.ByQuery),
		chromedp.SendKeys(DirectMessage, message+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("typing message: %w", err)
	}
	// The message is out; a cancelled pause does not change that.
	_ = e.pause(ctx, actions.DirectMessage)
	return true, nil
}

// Close shuts Chrome down. Further calls are no-ops.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.tab == nil {
		return nil
	}
	err := chromedp.Cancel(e.tab)
	e.tabCancel()
	e.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

func (e *Executor) start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.tab != nil {
		return nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(e.cfg, e.creds.Proxy)...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	var setup []chromedp.Action
	if p := e.creds.Proxy; p != nil && p.Username != "" {
		listenProxyAuth(tab, p)
		setup = append(setup, fetch.Enable().WithHandleAuthRequests(true))
	}

	startCtx, cancel := context.WithTimeout(tab, e.cfg.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(startCtx, setup...); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("starting browser: %w", err)
	}

	e.tab, e.tabCancel, e.allocCancel = tab, tabCancel, allocCancel
	e.logger.Debug("Browser started", "headless", e.cfg.Headless, "proxy", e.creds.Proxy != nil)
	return nil
}

// listenProxyAuth answers the proxy's auth challenges with p's credentials.
func listenProxyAuth(tab context.Context, p *validate.Proxy) {
	chromedp.ListenTarget(tab, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(tab, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}))
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(tab, fetch.ContinueRequest(ev.RequestID))
			}()
		}
	})
}

func (e *Executor) run(ctx context.Context, acts ...chromedp.Action) error {
	return e.runTimeout(ctx, e.cfg.PageTimeout, acts...)
}

// runTimeout runs acts on the tab, bounded by d and by ctx.
func (e *Executor) runTimeout(ctx context.Context, d time.Duration, acts ...chromedp.Action) error {
	e.mu.Lock()
	tab, closed := e.tab, e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if tab == nil {
		return errors.New("browser not started: call Login first")
	}

	runCtx, cancel := context.WithTimeout(tab, d)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, acts...)
}

// probe reports whether selector appears within probeTimeout.
func (e *Executor) probe(ctx context.Context, selector string) bool {
	return e.runTimeout(ctx, probeTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)) == nil
}

func (e *Executor) pause(ctx context.Context, category actions.Category) error {
	return e.clock.Sleep(ctx, security.RecommendedDelay(category, e.rnd))
}

func (e *Executor) saveCookies(ctx context.Context) {
	if e.cookies == nil {
		return
	}
	var cookies []*network.Cookie
	err := e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err == nil {
		err = e.cookies.Save(cookies, e.clock.Now())
	}
	if err != nil {
		e.logger.Warn("Failed to save session cookies", "error", err)
	}
}

func setCookies(cookies []*network.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("setting cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}
