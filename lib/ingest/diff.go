// Package ingest merges a stock check into stored state and works out who to tell what.
package ingest

import (
	"time"

	"github.com/fiffu/stockwatch/lib/models"
)

type Input struct {
	Snapshot      *models.Snapshot
	Item          *models.Item
	Subscriptions models.Subscriptions
	CheckTime     time.Time
	Bannable      bool
	AdminID       string
}

// SubscriberOutcome is what happens to one subscription after a check.
type SubscriberOutcome struct {
	Subscription *models.Subscription
	Delete       bool
	Messages     []string
}

type Result struct {
	Snapshot     *models.Snapshot
	Item         *models.Item
	History      *models.PriceHistory
	BanSuspected bool
	Admin        *models.Notification
	Subscribers  []SubscriberOutcome
}

// Diff computes the new item state, the history row to append and every subscriber's
// outcome. It does not touch its inputs.
func Diff(in Input) Result {
	snap := *in.Snapshot
	prev := *in.Item
	item := prev

	if snap.ItemName == "" {
		snap.ItemName = prev.Name
	} else {
		item.Name = snap.ItemName
	}

	snap.FailCount = 0
	if !snap.Resolvable {
		snap.FailCount = prev.FailCount() + 1
	}

	res := Result{Snapshot: &snap, Item: &item}

	if !snap.Equal(prev.LastSnapshot) {
		res.History = &models.PriceHistory{
			ItemURL:   item.URL,
			CheckTime: prev.LastCheck,
			Snapshot:  snap,
		}
	}

	item.InStock = snap.InStock
	item.LastCheck = in.CheckTime
	item.LastSnapshot = &snap

	if !snap.Resolvable && in.Bannable && snap.FailCount == models.MaxFailures {
		res.BanSuspected = true
		if in.AdminID != "" {
			res.Admin = &models.Notification{
				Recipient: in.AdminID,
				Messages:  []string{msgBanSuspected(item.Site, item.URL)},
			}
		}
	}

	for _, sub := range in.Subscriptions {
		d := &subscriberDiff{
			snap:     &snap,
			prev:     &prev,
			item:     &item,
			bannable: in.Bannable,
			sub:      cloneSubscription(sub),
		}
		res.Subscribers = append(res.Subscribers, d.run())
	}
	return res
}

func cloneSubscription(s models.Subscription) *models.Subscription {
	c := s
	c.Options.Sizes = append([]string{}, s.Options.Sizes...)
	c.LastInStockSizes = append([]string{}, s.LastInStockSizes...)
	c.LastInStockStores = append([]string{}, s.LastInStockStores...)
	return &c
}

type subscriberDiff struct {
	snap     *models.Snapshot
	prev     *models.Item
	item     *models.Item
	bannable bool
	sub      *models.Subscription

	messages []string
}

func (d *subscriberDiff) say(msg string) {
	d.messages = append(d.messages, msg)
}

func (d *subscriberDiff) keep() SubscriberOutcome {
	return SubscriberOutcome{Subscription: d.sub, Messages: d.messages}
}

func (d *subscriberDiff) drop() SubscriberOutcome {
	return SubscriberOutcome{Subscription: d.sub, Delete: true, Messages: d.messages}
}

func (d *subscriberDiff) run() SubscriberOutcome {
	sub, snap := d.sub, d.snap
	sub.Name = d.item.Name

	if !snap.Resolvable {
		if snap.FailCount >= models.MaxFailures && !d.bannable {
			d.say(msgUnavailable(sub.DisplayName(), snap.ItemURL))
			return d.drop()
		}
		return d.keep()
	}

	official := sub.Options.OfficialOnly
	threshold := sub.Options.Threshold
	price := snap.Price.For(official)
	previousPrice := d.prev.PreviousPrice(official)

	// Sites that do not expose sizes cannot filter by them.
	sizeFiltered := len(sub.Options.Sizes) > 0 && snap.AvailableSizes.Known()
	if sizeFiltered {
		tracked := models.Uniq(sub.Options.Sizes)
		valid := models.Intersect(tracked, snap.AvailableSizes.Values())
		if len(valid) == 0 {
			d.say(msgNoValidSizes(sub.DisplayName(), sub.ItemURL, tracked))
			return d.drop()
		}
		if len(valid) < len(tracked) {
			invalid := models.Difference(tracked, snap.AvailableSizes.Values())
			sub.Options.Sizes = valid
			d.say(msgSizesNarrowed(sub.DisplayName(), sub.ItemURL, invalid, valid))
		}
	}

	trackedInStock := []string{}
	if sizeFiltered {
		trackedInStock = models.Intersect(sub.Options.Sizes, snap.InStockSizes)
	}
	stores := models.Uniq(snap.InStockStores)
	priceOK := threshold.Satisfied(price)
	inStock := snap.InStock && priceOK

	if inStock == sub.LastInStock &&
		models.SameSet(trackedInStock, sub.LastInStockSizes) &&
		models.SameSet(stores, sub.LastInStockStores) {
		return d.keep()
	}

	switch {
	case !inStock && sub.LastInStock:
		if snap.InStock {
			d.say(msgPriceExceeded(d.item, sub, price))
		} else {
			d.say(msgOutOfStock(sub.DisplayName(), snap.ItemURL))
		}
		d.clear()

	case inStock:
		d.inStock(trackedInStock, stores, price, sizeFiltered)

	case snap.InStock && !priceOK && threshold.Satisfied(previousPrice):
		d.say(msgPriceExceeded(d.item, sub, price))
		d.clear()
	}
	return d.keep()
}

func (d *subscriberDiff) clear() {
	d.sub.LastInStock = false
	d.sub.LastInStockSizes = []string{}
	d.sub.LastInStockStores = []string{}
}

func (d *subscriberDiff) inStock(trackedInStock, stores []string, price models.Price, sizeFiltered bool) {
	sub, snap := d.sub, d.snap
	name := sub.DisplayName()

	newSizes := models.Difference(trackedInStock, sub.LastInStockSizes)
	goneSizes := models.Difference(sub.LastInStockSizes, trackedInStock)
	newStores := models.Difference(stores, sub.LastInStockStores)
	goneStores := models.Difference(sub.LastInStockStores, stores)

	if (!sub.LastInStock && !sizeFiltered) || len(newSizes) > 0 || len(newStores) > 0 {
		if len(newSizes) > 0 {
			d.say(msgSizesInStock(name, snap.ItemURL, price, newSizes, newStores, trackedInStock))
		} else {
			d.say(msgFoundStock(name, snap.ItemURL, price, newStores))
		}
		sub.LastInStock = true
	}

	if len(goneSizes) > 0 {
		if len(trackedInStock) == 0 {
			sub.LastInStock = false
			d.say(msgAllSizesGone(name, snap.ItemURL))
		} else {
			d.say(msgSizesGone(name, snap.ItemURL, goneSizes, trackedInStock))
		}
	}

	if len(goneStores) > 0 {
		if len(stores) == 0 {
			sub.LastInStock = false
			d.say(msgAllStoresGone(name, snap.ItemURL))
		} else {
			d.say(msgStoresGone(name, snap.ItemURL, goneStores, stores))
		}
	}

	sub.LastInStockSizes = trackedInStock
	sub.LastInStockStores = stores
}
