package snapshotter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib/browser"
	"github.com/fiffu/stockwatch/lib/checkers"
	"github.com/fiffu/stockwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	cancel func()
	// sleeps allowed before cancel is called
	budget int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) bool {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	exhausted := len(c.slept) > c.budget
	c.mu.Unlock()

	if exhausted && c.cancel != nil {
		c.cancel()
	}
	return ctx.Err() == nil
}

// fakeItems filters like the store does.
type fakeItems struct {
	items models.Items
	err   error
}

func (f *fakeItems) DueItems(ctx context.Context, cutoff time.Time, sites models.Sites) (models.Items, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := models.Items{}
	for _, it := range f.items {
		if !it.LastCheck.After(cutoff) && sites.Contains(it.Site) {
			out = append(out, it)
		}
	}
	return out, nil
}

type ingested struct {
	snap      *models.Snapshot
	checkTime time.Time
}

type fakeIngestor struct {
	mu    sync.Mutex
	calls []ingested
	fail  map[string]error
	panic map[string]bool
}

func (f *fakeIngestor) Ingest(ctx context.Context, snap *models.Snapshot, checkTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ingested{snap, checkTime})
	if f.panic[snap.ItemURL] {
		panic("ingest exploded")
	}
	return f.fail[snap.ItemURL]
}

// scriptedChecker answers per URL: an error, a panic, or an in-stock snapshot.
type scriptedChecker struct {
	site   models.Site
	errs   map[string]error
	panics map[string]bool

	mu    sync.Mutex
	pages []checkers.Page
}

func (c *scriptedChecker) Site() models.Site { return c.site }

func (c *scriptedChecker) Resolve(u *url.URL, domain, suffix string) (string, error) {
	return u.String(), nil
}

func (c *scriptedChecker) ResolveName(ctx context.Context, page checkers.Page, itemURL string) (string, error) {
	return "", nil
}

func (c *scriptedChecker) CheckStock(ctx context.Context, page checkers.Page, itemURL string) (*models.Snapshot, error) {
	c.mu.Lock()
	c.pages = append(c.pages, page)
	c.mu.Unlock()

	if c.panics[itemURL] {
		panic("checker exploded")
	}
	if err := c.errs[itemURL]; err != nil {
		return nil, err
	}
	snap := models.Unresolvable(itemURL)
	snap.Resolvable = true
	snap.InStock = true
	snap.Price = models.SamePrice(10)
	return snap, nil
}

type fakeSession struct {
	driver    browser.Driver
	err       error
	acquired  int
	discarded int
	closed    bool
}

func (s *fakeSession) Acquire(ctx context.Context) (browser.Driver, error) {
	s.acquired++
	if s.err != nil {
		return nil, s.err
	}
	return s.driver, nil
}

func (s *fakeSession) Discard() { s.discarded++ }
func (s *fakeSession) Close()   { s.closed = true }

type nopDriver struct{}

func (nopDriver) Fetch(ctx context.Context, req checkers.Request) (*html.Node, error) {
	return nil, errors.New("unused")
}
func (nopDriver) Close() error { return nil }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Polling.RequestInterval = 5 * time.Minute
	cfg.Polling.BrowserInterval = 10 * time.Minute
	cfg.Polling.FailureBackoff = 30 * time.Minute
	cfg.Polling.IdleDelay = 10 * time.Second
	cfg.Polling.BrowserItemDelay = 5 * time.Second
	cfg.Polling.BrowserCycleDelay = 5 * time.Second
	cfg.Polling.FetchTimeout = time.Second
	cfg.Sites.Browser = []string{string(models.SitePrincessPolly)}
	return cfg
}

func itemAt(url string, site models.Site, lastCheck time.Time, failures int) models.Item {
	it := models.NewItem(url, site, "")
	it.LastCheck = lastCheck
	if failures > 0 {
		it.LastSnapshot = models.Unresolvable(url)
		it.LastSnapshot.FailCount = failures
	}
	return *it
}

type harness struct {
	s        *Snapshotter
	clock    *fakeClock
	items    *fakeItems
	ing      *fakeIngestor
	session  *fakeSession
	request  *scriptedChecker
	rendered *scriptedChecker
	page     checkers.Page
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		clock:    &fakeClock{now: t0},
		items:    &fakeItems{},
		ing:      &fakeIngestor{fail: map[string]error{}, panic: map[string]bool{}},
		session:  &fakeSession{driver: nopDriver{}},
		request:  &scriptedChecker{site: models.SiteEVGA, errs: map[string]error{}, panics: map[string]bool{}},
		rendered: &scriptedChecker{site: models.SitePrincessPolly, errs: map[string]error{}, panics: map[string]bool{}},
		page:     checkers.NewHTTPPage(nil, 1, time.Second),
	}
	registry := checkers.NewRegistryOf(h.request, h.rendered)
	h.s = newSnapshotter(testConfig(), zap.NewNop(), h.items, registry, h.page, h.session, h.ing)
	h.s.clock = h.clock
	return h
}

func TestIsDue(t *testing.T) {
	interval, backoff := 5*time.Minute, 30*time.Minute
	tests := []struct {
		name      string
		lastCheck time.Time
		failures  int
		want      bool
	}{
		{"never checked", time.Unix(0, 0), 0, true},
		{"just checked", t0.Add(-time.Minute), 0, false},
		{"exactly one interval ago", t0.Add(-interval), 0, true},
		{"failing, interval elapsed but not backoff", t0.Add(-10 * time.Minute), 1, false},
		{"failing, backoff elapsed", t0.Add(-backoff), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := itemAt("https://evga.com/x", models.SiteEVGA, tt.lastCheck, tt.failures)
			assert.Equal(t, tt.want, IsDue(it, interval, backoff, t0))
		})
	}
}

func TestDueItems_RespectsSiteClassAndOverrides(t *testing.T) {
	h := newHarness(t)
	h.s.cfg.Polling.SiteIntervals = map[string]time.Duration{string(models.SiteEVGA): time.Hour}
	h.items.items = models.Items{
		itemAt("https://evga.com/recent", models.SiteEVGA, t0.Add(-30*time.Minute), 0),
		itemAt("https://evga.com/old", models.SiteEVGA, t0.Add(-2*time.Hour), 0),
		itemAt("https://princesspolly.com/a", models.SitePrincessPolly, t0.Add(-11*time.Minute), 0),
		itemAt("https://princesspolly.com/b", models.SitePrincessPolly, t0.Add(-11*time.Minute), 1),
	}

	due, err := h.s.dueItems(context.Background(), models.ClassRequest, t0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "https://evga.com/old", due[0].URL)

	due, err = h.s.dueItems(context.Background(), models.ClassBrowser, t0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "https://princesspolly.com/a", due[0].URL, "the failing item waits for the backoff")
}

func TestPollRequestSites_IsolatesFailures(t *testing.T) {
	h := newHarness(t)
	h.items.items = models.Items{
		itemAt("https://evga.com/ok", models.SiteEVGA, time.Unix(0, 0), 0),
		itemAt("https://evga.com/err", models.SiteEVGA, time.Unix(0, 0), 0),
		itemAt("https://evga.com/panic", models.SiteEVGA, time.Unix(0, 0), 0),
		itemAt("https://evga.com/ingest-err", models.SiteEVGA, time.Unix(0, 0), 0),
		itemAt("https://evga.com/ingest-panic", models.SiteEVGA, time.Unix(0, 0), 0),
	}
	h.request.errs["https://evga.com/err"] = errors.New("timeout")
	h.request.panics["https://evga.com/panic"] = true
	h.ing.fail["https://evga.com/ingest-err"] = errors.New("db locked")
	h.ing.panic["https://evga.com/ingest-panic"] = true

	m := h.s.pollRequestSites(context.Background())

	assert.Equal(t, 5, m.selected)
	assert.Equal(t, 2, m.errored)
	assert.Equal(t, 1, m.resolved)
	assert.Equal(t, 2, m.failed)
	require.Len(t, h.ing.calls, 5)

	byURL := map[string]*models.Snapshot{}
	for _, c := range h.ing.calls {
		byURL[c.snap.ItemURL] = c.snap
		assert.Equal(t, t0, c.checkTime, "one check time per cycle")
	}
	assert.True(t, byURL["https://evga.com/ok"].Resolvable)
	assert.False(t, byURL["https://evga.com/err"].Resolvable)
	assert.False(t, byURL["https://evga.com/panic"].Resolvable)

	for _, p := range h.request.pages {
		assert.Same(t, h.page, p)
	}
}

func TestPollBrowserSites_SerialWithDelay(t *testing.T) {
	h := newHarness(t)
	h.clock.budget = 100
	h.items.items = models.Items{
		itemAt("https://princesspolly.com/a", models.SitePrincessPolly, time.Unix(0, 0), 0),
		itemAt("https://princesspolly.com/b", models.SitePrincessPolly, time.Unix(0, 0), 0),
		itemAt("https://princesspolly.com/c", models.SitePrincessPolly, time.Unix(0, 0), 0),
		itemAt("https://evga.com/not-mine", models.SiteEVGA, time.Unix(0, 0), 0),
	}

	m := h.s.pollBrowserSites(context.Background(), nopDriver{})

	assert.Equal(t, 3, m.selected)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, h.clock.slept)
	require.Len(t, h.ing.calls, 3)
	assert.Equal(t, t0, h.ing.calls[0].checkTime)
	assert.Equal(t, t0.Add(10*time.Second), h.ing.calls[2].checkTime)
	for _, p := range h.rendered.pages {
		assert.Equal(t, nopDriver{}, p)
	}
}

func TestPollBrowserSites_SessionLostEndsCycle(t *testing.T) {
	h := newHarness(t)
	h.clock.budget = 100
	h.items.items = models.Items{
		itemAt("https://princesspolly.com/a", models.SitePrincessPolly, time.Unix(0, 0), 0),
		itemAt("https://princesspolly.com/b", models.SitePrincessPolly, time.Unix(0, 0), 0),
	}
	h.rendered.errs["https://princesspolly.com/a"] = fmt.Errorf("%w: target closed", browser.ErrSessionLost)

	m := h.s.pollBrowserSites(context.Background(), nopDriver{})

	assert.Equal(t, 1, h.session.discarded)
	require.Len(t, h.ing.calls, 1, "the rest of the cycle is skipped")
	assert.False(t, h.ing.calls[0].snap.Resolvable)
	assert.Equal(t, 1, m.failed)
}

func TestRunBrowserLoop_StopsWhenSessionCannotStart(t *testing.T) {
	h := newHarness(t)
	h.session.err = errors.New("chrome not found")

	done := make(chan struct{})
	go func() {
		h.s.runBrowserLoop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("browser loop did not stop")
	}
	assert.Equal(t, 1, h.session.acquired)
	assert.True(t, h.session.closed)
}

func TestRunBrowserLoop_IdlesWhenNothingDue(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.clock.cancel = cancel
	h.clock.budget = 2

	h.s.runBrowserLoop(ctx)

	assert.Equal(t, 3, h.session.acquired, "acquired at the top of every cycle")
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, h.clock.slept)
}

func TestRunRequestLoop_NeverRechecksBeforeInterval(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.clock.cancel = cancel
	h.clock.budget = 60 // ten minutes of idle cycles

	// The fake source does not see writes, so feed back each check like the store would.
	h.items.items = models.Items{itemAt("https://evga.com/x", models.SiteEVGA, t0, 0)}
	h.s.ingestor = ingestFunc(func(snap *models.Snapshot, checkTime time.Time) {
		h.ing.Ingest(ctx, snap, checkTime)
		h.items.items[0].LastCheck = checkTime
	})

	h.s.runRequestLoop(ctx)

	require.NotEmpty(t, h.ing.calls)
	last := t0
	for _, c := range h.ing.calls {
		assert.GreaterOrEqual(t, c.checkTime.Sub(last), 5*time.Minute)
		last = c.checkTime
	}
}

type ingestFunc func(snap *models.Snapshot, checkTime time.Time)

func (f ingestFunc) Ingest(ctx context.Context, snap *models.Snapshot, checkTime time.Time) error {
	f(snap, checkTime)
	return nil
}
