// Package browser drives the Instagram web UI with chromedp and implements
// actions.Executor.
package browser

import (
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/validate"
)

// DefaultUserAgent is a realistic desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const defaultPageTimeout = 60 * time.Second

// Config holds browser settings shared by every account.
type Config struct {
	Headless    bool          `yaml:"headless"`
	UserAgent   string        `yaml:"user_agent"`
	PageTimeout time.Duration `yaml:"page_timeout"`
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string `yaml:"exec_path"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.PageTimeout == 0 {
		c.PageTimeout = defaultPageTimeout
	}
}

// AllocatorOptions returns chromedp allocator options for one account's
// browser. proxy may be nil.
func AllocatorOptions(cfg Config, proxy *validate.Proxy) []chromedp.ExecAllocatorOption {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		// Hides navigator.webdriver.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1366, 768),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("lang", "en-US"),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if proxy != nil {
		opts = append(opts, chromedp.ProxyServer(proxy.URL()))
	}
	return opts
}
