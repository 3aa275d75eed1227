package checkers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/carlmjohnson/requests"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Request describes one page load. Headers are a hint; a rendered browser page may ignore them.
type Request struct {
	URL     string
	Headers http.Header
}

// Page is how a checker obtains a parsed document, either over plain HTTP or from a
// rendered browser tab.
type Page interface {
	Fetch(ctx context.Context, req Request) (*html.Node, error)
}

var baseHeaders = http.Header{
	"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"},
	"Accept-Language":           {"en-GB,en-US;q=0.9,en;q=0.8"},
	"Sec-Fetch-Dest":            {"document"},
	"Sec-Fetch-Mode":            {"navigate"},
	"Sec-Fetch-Site":            {"none"},
	"Sec-Fetch-User":            {"?1"},
	"Upgrade-Insecure-Requests": {"1"},
}

// HTTPPage fetches with a plain HTTP client, rate limited per host. The timeout bounds
// only the round trip, not the wait for the host's limiter.
type HTTPPage struct {
	transport http.RoundTripper
	limit     rate.Limit
	burst     int
	timeout   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHTTPPage(transport http.RoundTripper, perSecond float64, timeout time.Duration) *HTTPPage {
	return &HTTPPage{
		transport: transport,
		limit:     rate.Limit(perSecond),
		burst:     1,
		timeout:   timeout,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (p *HTTPPage) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[host] = l
	}
	return l
}

func (p *HTTPPage) Fetch(ctx context.Context, req Request) (*html.Node, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	if err := p.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	headers := req.Headers
	if headers == nil {
		headers = baseHeaders
	}

	var doc *html.Node
	rb := requests.URL(req.URL).
		Transport(p.transport).
		UserAgent(RandomUserAgent()).
		Handle(func(res *http.Response) (err error) {
			doc, err = htmlquery.Parse(res.Body)
			return err
		})
	for key, values := range headers {
		rb = rb.Header(key, values...)
	}
	if err := rb.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	return doc, nil
}
