package lib

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fiffu/stockwatch/lib/models"
	"github.com/fiffu/stockwatch/lib/store"
)

// SubscriptionInfo is a subscription together with its item's most recent history.
type SubscriptionInfo struct {
	models.Subscription
	History models.PriceHistories
}

// Subscribe tracks the item behind rawURL for userID, replacing any earlier tracking of
// the same item. Unseen items are created with their name looked up from the site.
func (svc *Service) Subscribe(ctx context.Context, userID, rawURL string, opts models.TrackingOptions) (*models.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, userErrorf(nil, "A user id is required")
	}
	itemURL, site, err := svc.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	item, err := svc.store.GetItem(ctx, itemURL)
	if errors.Is(err, store.ErrNotFound) {
		item, err = svc.createItem(ctx, itemURL, site)
	}
	if err != nil {
		return nil, err
	}

	opts.Sizes = normalizeSizes(opts.Sizes)
	sub := models.NewSubscription(userID, itemURL, opts)
	sub.Name = item.Name
	if err := svc.store.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}

	svc.log.Sugar().Infow("Subscribed", "user_id", userID, "url", itemURL, "threshold", opts.Threshold.String())
	return sub, nil
}

func (svc *Service) createItem(ctx context.Context, itemURL string, site models.Site) (*models.Item, error) {
	name := ""
	if checker, err := svc.registry.Get(site); err == nil {
		name, err = checker.ResolveName(ctx, svc.page, itemURL)
		if err != nil {
			svc.log.Sugar().Warnw("Could not resolve item name", "url", itemURL, "err", err)
			name = ""
		}
	}

	if err := svc.store.InsertItemIfAbsent(ctx, models.NewItem(itemURL, site, name)); err != nil {
		return nil, err
	}
	// Another subscriber may have created it first.
	item, err := svc.store.GetItem(ctx, itemURL)
	if err != nil {
		return nil, fmt.Errorf("read created item: %w", err)
	}
	return item, nil
}

func normalizeSizes(sizes []string) []string {
	out := []string{}
	for _, s := range sizes {
		if size := models.NormalizeSize(s); size != "" {
			out = append(out, size)
		}
	}
	return models.Uniq(out)
}

func (svc *Service) Unsubscribe(ctx context.Context, userID, rawURL string) error {
	itemURL, _, err := svc.resolve(rawURL)
	if err != nil {
		return err
	}
	deleted, err := svc.store.DeleteSubscription(ctx, userID, itemURL)
	if err != nil {
		return err
	}
	if !deleted {
		return userErrorf(nil, "You are not currently subscribed to %s", itemURL)
	}
	svc.log.Sugar().Infow("Unsubscribed", "user_id", userID, "url", itemURL)
	return nil
}

// UnsubscribeAll returns how many subscriptions were removed.
func (svc *Service) UnsubscribeAll(ctx context.Context, userID string) (int64, error) {
	n, err := svc.store.DeleteSubscriptionsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, userErrorf(nil, "You are not currently subscribed to anything")
	}
	svc.log.Sugar().Infow("Unsubscribed from all", "user_id", userID, "count", n)
	return n, nil
}

// Subscriptions lists what userID tracks, each with up to historyN history rows.
func (svc *Service) Subscriptions(ctx context.Context, userID string, historyN int) ([]SubscriptionInfo, error) {
	subs, err := svc.store.SubscriptionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	histories := map[string]models.PriceHistories{}
	if historyN > 0 && len(subs) > 0 {
		urls := make([]string, len(subs))
		for i, sub := range subs {
			urls[i] = sub.ItemURL
		}
		if histories, err = svc.store.LatestPriceHistories(ctx, urls, historyN); err != nil {
			return nil, err
		}
	}

	out := make([]SubscriptionInfo, len(subs))
	for i, sub := range subs {
		out[i] = SubscriptionInfo{Subscription: sub, History: histories[sub.ItemURL]}
	}
	return out, nil
}

// SubscribedMessage confirms what the subscriber will be told about.
func (svc *Service) SubscribedMessage(sub *models.Subscription) string {
	site := sub.ItemURL
	if _, s, err := svc.registry.Resolve(sub.ItemURL); err == nil {
		site = string(s)
	}

	price := "is in stock"
	if sub.Options.Threshold.Set {
		price = fmt.Sprintf("goes below or equal to $%.2f", sub.Options.Threshold.Limit)
	}
	sizes := ""
	if len(sub.Options.Sizes) > 0 {
		sizes = " with size(s) " + models.FormatSizes(sub.Options.Sizes)
	}
	source := "and sold by any seller on " + site
	if sub.Options.OfficialOnly {
		source = "and sold by " + site + " directly"
	}
	return fmt.Sprintf("Successfully subscribed to be notified when %s %s%s %s", sub.DisplayName(), price, sizes, source)
}
