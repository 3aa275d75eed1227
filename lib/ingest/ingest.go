package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib/models"
	"github.com/fiffu/stockwatch/lib/store"
	"go.uber.org/zap"
)

// Outbox accepts notifications for delivery. Enqueue must not block on delivery.
type Outbox interface {
	Enqueue(n models.Notification)
}

type Ingestor struct {
	cfg    *config.Config
	log    *zap.Logger
	store  *store.Store
	outbox Outbox
}

func NewIngestor(cfg *config.Config, log *zap.Logger, st *store.Store, outbox Outbox) *Ingestor {
	return &Ingestor{cfg, log, st, outbox}
}

// Ingest applies one check result. Item state is written before any notification is
// handed to the outbox, and each subscriber's row is written before that subscriber's
// messages are.
func (ing *Ingestor) Ingest(ctx context.Context, snap *models.Snapshot, checkTime time.Time) error {
	item, err := ing.store.GetItem(ctx, snap.ItemURL)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", snap.ItemURL, err)
	}
	subs, err := ing.store.SubscriptionsForItem(ctx, snap.ItemURL)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", snap.ItemURL, err)
	}

	res := Diff(Input{
		Snapshot:      snap,
		Item:          item,
		Subscriptions: subs,
		CheckTime:     checkTime,
		Bannable:      ing.cfg.IsBannable(item.Site),
		AdminID:       ing.cfg.Notify.AdminID,
	})

	if res.History != nil {
		if err := ing.store.InsertPriceHistory(ctx, res.History); err != nil {
			return fmt.Errorf("ingest %s: %w", snap.ItemURL, err)
		}
	}
	if err := ing.store.UpsertItem(ctx, res.Item); err != nil {
		return fmt.Errorf("ingest %s: %w", snap.ItemURL, err)
	}

	if !res.Snapshot.Resolvable {
		ing.log.Sugar().Warnw("Item check failed",
			"url", snap.ItemURL, "site", item.Site, "fail_count", res.Snapshot.FailCount)
	}
	if res.BanSuspected {
		ing.log.Sugar().Errorw("Site ban suspected", "site", item.Site, "url", item.URL)
		if res.Admin != nil {
			ing.outbox.Enqueue(*res.Admin)
		}
	}

	for _, outcome := range res.Subscribers {
		if err := ing.persist(ctx, outcome); err != nil {
			ing.log.Sugar().Errorw("Failed to update subscriber",
				"url", snap.ItemURL, "user_id", outcome.Subscription.UserID, "err", err)
			continue
		}
		if len(outcome.Messages) > 0 {
			ing.outbox.Enqueue(models.Notification{
				Recipient: outcome.Subscription.UserID,
				Messages:  outcome.Messages,
			})
		}
	}
	return nil
}

func (ing *Ingestor) persist(ctx context.Context, outcome SubscriberOutcome) error {
	sub := outcome.Subscription
	if outcome.Delete {
		_, err := ing.store.DeleteSubscription(ctx, sub.UserID, sub.ItemURL)
		return err
	}
	return ing.store.UpsertSubscription(ctx, sub)
}
