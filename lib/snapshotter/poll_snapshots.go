package snapshotter

import (
	"context"
	"errors"
	"sync"

	"github.com/fiffu/stockwatch/lib/browser"
	"github.com/fiffu/stockwatch/lib/models"
	"github.com/fiffu/stockwatch/lib/store"
)

func (s *Snapshotter) runRequestLoop(ctx context.Context) {
	for ctx.Err() == nil {
		s.pollRequestSites(ctx)
		if !s.clock.Sleep(ctx, s.cfg.Polling.IdleDelay) {
			return
		}
	}
}

// pollRequestSites checks every due item at once, then ingests the results one by one
// under a single check time.
func (s *Snapshotter) pollRequestSites(ctx context.Context) *cycleMetrics {
	startedAt := s.clock.Now()
	m := &cycleMetrics{class: models.ClassRequest.String()}

	due, err := s.dueItems(ctx, models.ClassRequest, startedAt)
	if err != nil {
		s.log.Sugar().Errorw("Failed to select due items", "class", m.class, "err", err)
		return m
	}
	m.selected = len(due)

	snaps := make([]*models.Snapshot, len(due))
	var wg sync.WaitGroup
	for i, item := range due {
		i, item := i, item
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i], _ = s.check(ctx, s.page, item)
		}()
	}
	wg.Wait()

	checkTime := store.Timestamp(s.clock.Now())
	for _, snap := range snaps {
		s.ingest(ctx, snap, checkTime, m)
	}

	m.log(s.log, startedAt, s.clock.Now())
	return m
}

func (s *Snapshotter) runBrowserLoop(ctx context.Context) {
	defer s.session.Close()

	for ctx.Err() == nil {
		driver, err := s.session.Acquire(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Sugar().Errorw("Browser session could not be created, stopping browser loop", "err", err)
			}
			return
		}

		delay := s.cfg.Polling.IdleDelay
		if m := s.pollBrowserSites(ctx, driver); m.selected > 0 {
			delay = s.cfg.Polling.BrowserCycleDelay
		}
		if !s.clock.Sleep(ctx, delay) {
			return
		}
	}
}

// pollBrowserSites checks due items one at a time. A lost session ends the cycle early so
// the next one starts with a fresh browser.
func (s *Snapshotter) pollBrowserSites(ctx context.Context, page browser.Driver) *cycleMetrics {
	startedAt := s.clock.Now()
	m := &cycleMetrics{class: models.ClassBrowser.String()}

	due, err := s.dueItems(ctx, models.ClassBrowser, startedAt)
	if err != nil {
		s.log.Sugar().Errorw("Failed to select due items", "class", m.class, "err", err)
		return m
	}
	m.selected = len(due)

	for i, item := range due {
		if i > 0 && !s.clock.Sleep(ctx, s.cfg.Polling.BrowserItemDelay) {
			break
		}

		snap, err := s.check(ctx, page, item)
		s.ingest(ctx, snap, store.Timestamp(s.clock.Now()), m)

		if errors.Is(err, browser.ErrSessionLost) {
			s.log.Sugar().Warnw("Browser session lost, discarding", "url", item.URL, "err", err)
			s.session.Discard()
			break
		}
	}

	m.log(s.log, startedAt, s.clock.Now())
	return m
}
