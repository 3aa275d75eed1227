package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/fiffu/stockwatch/lib/checkers"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

type RodConfig struct {
	// RemoteURL is the DevTools websocket of an external Chrome. Empty launches a local one.
	RemoteURL string
	Headless  bool
	Timeout   time.Duration
}

// RodLauncher starts Chrome through rod.
func RodLauncher(cfg RodConfig, log *zap.Logger) Launcher {
	return func(ctx context.Context) (Driver, error) {
		d := &rodDriver{timeout: cfg.Timeout, log: log, pingTimeout: pingTimeout}
		d.ping = d.pingBrowser

		wsURL := cfg.RemoteURL
		if wsURL == "" {
			l := launcher.New().
				Context(ctx).
				Headless(cfg.Headless).
				Set("disable-blink-features", "AutomationControlled")
			u, err := l.Launch()
			if err != nil {
				return nil, fmt.Errorf("launch chrome: %w", err)
			}
			wsURL = u
			d.lnch = l
		}

		b := rod.New().ControlURL(wsURL)
		if err := b.Connect(); err != nil {
			d.Close()
			return nil, fmt.Errorf("connect chrome: %w", err)
		}
		d.browser = b
		return d, nil
	}
}

const pingTimeout = 5 * time.Second

type rodDriver struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	timeout time.Duration
	log     *zap.Logger

	// ping reports whether the browser still answers; a hung browser counts as lost.
	ping        func(ctx context.Context) error
	pingTimeout time.Duration
}

// Fetch renders the page in a fresh stealth tab and parses the resulting DOM.
func (d *rodDriver) Fetch(ctx context.Context, req checkers.Request) (*html.Node, error) {
	page, err := stealth.Page(d.browser)
	if err != nil {
		return nil, d.classify(fmt.Errorf("open tab: %w", err))
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, d.classify(fmt.Errorf("navigate %s: %w", req.URL, err))
	}
	if err := p.WaitLoad(); err != nil {
		d.log.Sugar().Warnw("Wait for page load failed", "url", req.URL, "err", err)
	}

	src, err := p.HTML()
	if err != nil {
		return nil, d.classify(fmt.Errorf("read dom %s: %w", req.URL, err))
	}
	return htmlquery.Parse(strings.NewReader(src))
}

// classify pings the browser; an unresponsive browser turns err into ErrSessionLost.
func (d *rodDriver) classify(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.pingTimeout)
	defer cancel()
	if pingErr := d.ping(ctx); pingErr != nil {
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	return err
}

func (d *rodDriver) pingBrowser(ctx context.Context) error {
	_, err := proto.BrowserGetVersion{}.Call(d.browser.Context(ctx))
	return err
}

func (d *rodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.lnch != nil {
		d.lnch.Cleanup()
		d.lnch = nil
	}
	return err
}
