// Package browser owns the headless browser used for sites that only render client side.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/stockwatch/lib/checkers"
	"go.uber.org/zap"
)

// ErrSessionLost marks a fetch error after which the browser no longer responds.
var ErrSessionLost = errors.New("browser session lost")

// Driver is a live browser that renders pages.
type Driver interface {
	checkers.Page
	Close() error
}

type Launcher func(ctx context.Context) (Driver, error)

// Session lazily launches a driver and replaces it once it is discarded or older than the
// recycle interval. It is owned by a single loop and is not safe for concurrent use.
type Session struct {
	launch  Launcher
	recycle time.Duration
	log     *zap.Logger
	now     func() time.Time

	driver    Driver
	startedAt time.Time
}

func NewSession(launch Launcher, recycle time.Duration, log *zap.Logger) *Session {
	return &Session{
		launch:  launch,
		recycle: recycle,
		log:     log,
		now:     time.Now,
	}
}

// Acquire returns the live driver, launching a new one when needed.
func (s *Session) Acquire(ctx context.Context) (Driver, error) {
	if s.driver != nil && s.recycle > 0 && s.now().Sub(s.startedAt) >= s.recycle {
		s.log.Sugar().Infow("Recycling browser session", "uptime", s.now().Sub(s.startedAt).String())
		s.Discard()
	}
	if s.driver != nil {
		return s.driver, nil
	}

	driver, err := s.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	s.driver = driver
	s.startedAt = s.now()
	s.log.Info("Browser session started")
	return driver, nil
}

// Discard closes the current driver so the next Acquire starts a fresh one.
func (s *Session) Discard() {
	if s.driver == nil {
		return
	}
	if err := s.driver.Close(); err != nil {
		s.log.Sugar().Warnw("Closing browser session failed", "err", err)
	}
	s.driver = nil
}

func (s *Session) Close() {
	s.Discard()
}
