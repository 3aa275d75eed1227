package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fiffu/stockwatch/lib/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return NewStore(db)
}

func TestStore_ItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetItem(ctx, "https://evga.com/p/1")
	assert.ErrorIs(t, err, ErrNotFound)

	item := models.NewItem("https://evga.com/p/1", models.SiteEVGA, "RTX")
	require.NoError(t, s.InsertItemIfAbsent(ctx, item))

	again := models.NewItem("https://evga.com/p/1", models.SiteEVGA, "other name")
	require.NoError(t, s.InsertItemIfAbsent(ctx, again))

	got, err := s.GetItem(ctx, item.URL)
	require.NoError(t, err)
	assert.Equal(t, "RTX", got.Name)
	assert.Nil(t, got.LastSnapshot)
	assert.Equal(t, int64(0), got.LastCheck.Unix())

	snap := &models.Snapshot{
		ItemURL:        item.URL,
		Resolvable:     true,
		InStock:        true,
		Price:          models.SamePrice(45),
		AvailableSizes: models.UnknownSizes(),
		InStockSizes:   []string{},
		InStockStores:  []string{},
	}
	got.InStock = true
	got.LastSnapshot = snap
	got.LastCheck = time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	require.NoError(t, s.UpsertItem(ctx, got))

	got, err = s.GetItem(ctx, item.URL)
	require.NoError(t, err)
	assert.True(t, got.InStock)
	require.NotNil(t, got.LastSnapshot)
	assert.True(t, snap.Equal(got.LastSnapshot))
	assert.False(t, got.LastSnapshot.AvailableSizes.Known())
	assert.True(t, got.LastCheck.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestStore_DueItems(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := models.NewItem("https://evga.com/stale", models.SiteEVGA, "")
	fresh := models.NewItem("https://evga.com/fresh", models.SiteEVGA, "")
	fresh.LastCheck = now
	orphan := models.NewItem("https://evga.com/orphan", models.SiteEVGA, "")
	other := models.NewItem("https://princesspolly.com/x", models.SitePrincessPolly, "")

	for _, it := range []*models.Item{stale, fresh, orphan, other} {
		require.NoError(t, s.UpsertItem(ctx, it))
	}
	for _, it := range []*models.Item{stale, fresh, other} {
		sub := models.NewSubscription("u1", it.URL, models.DefaultTrackingOptions())
		require.NoError(t, s.UpsertSubscription(ctx, sub))
	}

	due, err := s.DueItems(ctx, now.Add(-time.Minute), models.Sites{models.SiteEVGA})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, stale.URL, due[0].URL)

	due, err = s.DueItems(ctx, now, models.Sites{models.SiteEVGA, models.SitePrincessPolly})
	require.NoError(t, err)
	assert.Len(t, due, 3)

	due, err = s.DueItems(ctx, now, nil)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	opts := models.TrackingOptions{Threshold: models.NewThreshold(50), Sizes: []string{"s"}}
	require.NoError(t, s.UpsertSubscription(ctx, models.NewSubscription("u1", "https://a", opts)))
	require.NoError(t, s.UpsertSubscription(ctx, models.NewSubscription("u1", "https://b", models.DefaultTrackingOptions())))
	require.NoError(t, s.UpsertSubscription(ctx, models.NewSubscription("u2", "https://a", models.DefaultTrackingOptions())))

	sub, err := s.GetSubscription(ctx, "u1", "https://a")
	require.NoError(t, err)
	assert.Equal(t, opts, sub.Options)
	assert.Equal(t, []string{}, sub.LastInStockSizes)

	sub.LastInStock = true
	sub.LastInStockStores = []string{"Burnaby"}
	require.NoError(t, s.UpsertSubscription(ctx, sub))
	sub, err = s.GetSubscription(ctx, "u1", "https://a")
	require.NoError(t, err)
	assert.True(t, sub.LastInStock)
	assert.Equal(t, []string{"Burnaby"}, sub.LastInStockStores)

	forItem, err := s.SubscriptionsForItem(ctx, "https://a")
	require.NoError(t, err)
	assert.Len(t, forItem, 2)

	removed, err := s.DeleteSubscription(ctx, "u2", "https://a")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.DeleteSubscription(ctx, "u2", "https://a")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := s.DeleteSubscriptionsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	forUser, err := s.SubscriptionsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, forUser)

	_, err = s.GetSubscription(ctx, "u1", "https://a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PriceHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		snap := models.Unresolvable("https://a")
		snap.Price = models.SamePrice(float64(10 + i))
		row := &models.PriceHistory{ItemURL: "https://a", CheckTime: base.Add(time.Duration(i) * time.Hour), Snapshot: *snap}
		require.NoError(t, s.InsertPriceHistory(ctx, row))
	}

	dup := &models.PriceHistory{ItemURL: "https://a", CheckTime: base, Snapshot: *models.Unresolvable("https://a")}
	require.NoError(t, s.InsertPriceHistory(ctx, dup), "conflicting rows are ignored")

	got, err := s.LatestPriceHistories(ctx, []string{"https://a", "https://b"}, 2)
	require.NoError(t, err)
	require.Len(t, got["https://a"], 2)
	assert.Empty(t, got["https://b"])

	assert.True(t, got["https://a"][0].CheckTime.Equal(base.Add(3*time.Hour)))
	assert.Equal(t, models.NewPrice(13), got["https://a"][0].Snapshot.Price.MinPrice)
	assert.True(t, got["https://a"][1].CheckTime.Equal(base.Add(2*time.Hour)))

	all, err := s.LatestPriceHistories(ctx, []string{"https://a"}, 10)
	require.NoError(t, err)
	require.Len(t, all["https://a"], 4)
	last := all["https://a"][3]
	assert.Equal(t, models.NewPrice(10), last.Snapshot.Price.MinPrice, "the first row was not overwritten")
}
