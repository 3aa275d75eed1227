package snapshotter

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib/browser"
	"github.com/fiffu/stockwatch/lib/checkers"
	"github.com/fiffu/stockwatch/lib/ingest"
	"github.com/fiffu/stockwatch/lib/models"
	"github.com/fiffu/stockwatch/lib/store"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type itemSource interface {
	DueItems(ctx context.Context, cutoff time.Time, sites models.Sites) (models.Items, error)
}

type ingestor interface {
	Ingest(ctx context.Context, snap *models.Snapshot, checkTime time.Time) error
}

type browserSession interface {
	Acquire(ctx context.Context) (browser.Driver, error)
	Discard()
	Close()
}

func NewSnapshotter(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	st *store.Store,
	registry checkers.Registry,
	page *checkers.HTTPPage,
	session *browser.Session,
	ing *ingest.Ingestor,
) *Snapshotter {
	s := newSnapshotter(cfg, log, st, registry, page, session, ing)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop snapshotter")
			return s.Stop(ctx)
		},
	})
	return s
}

func newSnapshotter(cfg *config.Config, log *zap.Logger, items itemSource, registry checkers.Registry, page checkers.Page, session browserSession, ing ingestor) *Snapshotter {
	return &Snapshotter{
		cfg:      cfg,
		log:      log,
		items:    items,
		registry: registry,
		page:     page,
		session:  session,
		ingestor: ing,
		clock:    wallClock{},
	}
}

// Snapshotter drives the poll loops: one concurrent loop for plain request sites and
// one serial loop for sites rendered in the browser.
type Snapshotter struct {
	cfg      *config.Config
	log      *zap.Logger
	items    itemSource
	registry checkers.Registry
	page     checkers.Page
	session  browserSession
	ingestor ingestor
	clock    alarmClock

	cancel func()
	wg     sync.WaitGroup
}

func (s *Snapshotter) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRequestLoop(ctx)
	}()

	if len(s.sites(models.ClassBrowser)) > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runBrowserLoop(ctx)
		}()
	}
	s.log.Info("Snapshotter started")
}

func (s *Snapshotter) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Sugar().Info("Snapshotter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sites lists the supported sites polled by the given loop.
func (s *Snapshotter) sites(class models.Class) models.Sites {
	var out models.Sites
	for _, site := range s.registry.Sites() {
		if s.cfg.SiteClass(site) == class {
			out = append(out, site)
		}
	}
	return out
}

// IsDue reports whether an item should be checked at now.
func IsDue(item models.Item, interval, backoff time.Duration, now time.Time) bool {
	elapsed := now.Sub(item.LastCheck)
	if elapsed < interval {
		return false
	}
	return item.FailCount() == 0 || elapsed >= backoff
}

func (s *Snapshotter) dueItems(ctx context.Context, class models.Class, now time.Time) (models.Items, error) {
	due := models.Items{}
	for _, site := range s.sites(class) {
		interval := s.cfg.SiteInterval(site, class)
		items, err := s.items.DueItems(ctx, now.Add(-interval), models.Sites{site})
		if err != nil {
			return nil, fmt.Errorf("due items for %s: %w", site, err)
		}
		for _, item := range items {
			if IsDue(item, interval, s.cfg.Polling.FailureBackoff, now) {
				due = append(due, item)
			}
		}
	}
	return due, nil
}

// check never fails outright: errors and panics become an unresolvable snapshot, and the
// error is returned alongside for the caller to inspect.
func (s *Snapshotter) check(ctx context.Context, page checkers.Page, item models.Item) (snap *models.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.log.Sugar().Errorw("checker panic",
				"correlation_id", correlationID,
				"url", item.URL,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			snap = models.Unresolvable(item.URL)
			err = fmt.Errorf("checker panic (correlation_id: %s)", correlationID)
		}
	}()

	checker, err := s.registry.Get(item.Site)
	if err != nil {
		return models.Unresolvable(item.URL), err
	}

	// Pages bound each fetch themselves, after any rate limit wait.
	snap, err = checker.CheckStock(ctx, page, item.URL)
	if err != nil || snap == nil {
		s.log.Sugar().Warnw("Stock check failed", "url", item.URL, "site", item.Site, "err", err)
		return models.Unresolvable(item.URL), err
	}
	snap.ItemURL = item.URL
	return snap, nil
}

func (s *Snapshotter) ingest(ctx context.Context, snap *models.Snapshot, checkTime time.Time, m *cycleMetrics) {
	defer func() {
		if r := recover(); r != nil {
			m.errored++
			s.log.Sugar().Errorw("ingest panic",
				"correlation_id", uuid.NewString(),
				"url", snap.ItemURL,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := s.ingestor.Ingest(ctx, snap, checkTime); err != nil {
		m.errored++
		s.log.Sugar().Errorw("Failed to ingest stock check", "url", snap.ItemURL, "err", err)
		return
	}
	if snap.Resolvable {
		m.resolved++
	} else {
		m.failed++
	}
}
