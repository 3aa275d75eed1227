package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib/checkers"
	"github.com/fiffu/stockwatch/lib/models"
	"github.com/fiffu/stockwatch/lib/store"
	"go.uber.org/zap"
)

// Service holds the user-facing operations: managing subscriptions and reading price history.
type Service struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	registry checkers.Registry
	page     checkers.Page
}

func NewService(cfg *config.Config, log *zap.Logger, st *store.Store, registry checkers.Registry, page *checkers.HTTPPage) *Service {
	return newService(cfg, log, st, registry, page)
}

func newService(cfg *config.Config, log *zap.Logger, st *store.Store, registry checkers.Registry, page checkers.Page) *Service {
	return &Service{cfg, log, st, registry, page}
}

// resolve turns a user-supplied URL into the canonical item URL.
func (svc *Service) resolve(rawURL string) (string, models.Site, error) {
	itemURL, site, err := svc.registry.Resolve(rawURL)
	switch {
	case errors.Is(err, checkers.ErrInvalidURL):
		return "", "", userErrorf(err, "%s is not a valid url", rawURL)
	case errors.Is(err, checkers.ErrUnsupportedSite):
		return "", "", userErrorf(err, "The website for %s is not supported at this time", rawURL)
	case err != nil:
		return "", "", err
	}
	return itemURL, site, nil
}

// PriceHistories returns the latest n history rows for each URL that resolves, and the
// URLs that do not.
func (svc *Service) PriceHistories(ctx context.Context, rawURLs []string, n int) (map[string]models.PriceHistories, []string, error) {
	var valid, invalid []string
	for _, raw := range rawURLs {
		itemURL, _, err := svc.resolve(raw)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		valid = append(valid, itemURL)
	}

	histories, err := svc.store.LatestPriceHistories(ctx, models.Uniq(valid), n)
	if err != nil {
		return nil, nil, fmt.Errorf("price histories: %w", err)
	}
	return histories, invalid, nil
}
