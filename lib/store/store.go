package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fiffu/stockwatch/lib/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// Store is the only path to the database. Every operation holds one store-wide lock, so
// the poll loops and the API never interleave writes.
type Store struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Item{},
		&models.Subscription{},
		&models.PriceHistory{},
	)
}

// Timestamp normalizes check times the way they are stored.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (s *Store) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) GetItem(ctx context.Context, url string) (*models.Item, error) {
	defer s.lock()()

	item := &models.Item{}
	tx := s.db.WithContext(ctx).Where("url = ?", url).Take(item)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// DueItems lists items on the given sites, last checked at or before cutoff, that
// someone still subscribes to.
func (s *Store) DueItems(ctx context.Context, cutoff time.Time, sites models.Sites) (models.Items, error) {
	defer s.lock()()

	items := models.Items{}
	if len(sites) == 0 {
		return items, nil
	}
	tx := s.db.WithContext(ctx).
		Where("last_check_ts <= ?", Timestamp(cutoff)).
		Where("site IN ?", sites.Strings()).
		Where("EXISTS (SELECT 1 FROM subscriptions WHERE subscriptions.item_url = items.url)").
		Order("last_check_ts asc").
		Find(&items)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("due items: %w", err)
	}
	return items, nil
}

func (s *Store) UpsertItem(ctx context.Context, item *models.Item) error {
	defer s.lock()()

	item.LastCheck = Timestamp(item.LastCheck)
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(item)
	if err := tx.Error; err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

func (s *Store) InsertItemIfAbsent(ctx context.Context, item *models.Item) error {
	defer s.lock()()

	item.LastCheck = Timestamp(item.LastCheck)
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item)
	if err := tx.Error; err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// InsertPriceHistory appends a history row; a row already at that key is kept.
func (s *Store) InsertPriceHistory(ctx context.Context, row *models.PriceHistory) error {
	defer s.lock()()

	row.CheckTime = Timestamp(row.CheckTime)
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if err := tx.Error; err != nil {
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}

func (s *Store) SubscriptionsForItem(ctx context.Context, url string) (models.Subscriptions, error) {
	defer s.lock()()

	subs := models.Subscriptions{}
	tx := s.db.WithContext(ctx).Where("item_url = ?", url).Order("user_id").Find(&subs)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("subscriptions for item: %w", err)
	}
	return subs, nil
}

func (s *Store) SubscriptionsForUser(ctx context.Context, userID string) (models.Subscriptions, error) {
	defer s.lock()()

	subs := models.Subscriptions{}
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("item_url").Find(&subs)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("subscriptions for user: %w", err)
	}
	return subs, nil
}

func (s *Store) GetSubscription(ctx context.Context, userID, url string) (*models.Subscription, error) {
	defer s.lock()()

	sub := &models.Subscription{}
	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("item_url = ?", url).
		Take(sub)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	defer s.lock()()

	if sub.LastInStockSizes == nil {
		sub.LastInStockSizes = []string{}
	}
	if sub.LastInStockStores == nil {
		sub.LastInStockStores = []string{}
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(sub)
	if err := tx.Error; err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// DeleteSubscription reports whether a row was removed.
func (s *Store) DeleteSubscription(ctx context.Context, userID, url string) (bool, error) {
	defer s.lock()()

	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("item_url = ?", url).
		Delete(&models.Subscription{})
	if err := tx.Error; err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return tx.RowsAffected > 0, nil
}

// DeleteSubscriptionsForUser returns how many rows were removed.
func (s *Store) DeleteSubscriptionsForUser(ctx context.Context, userID string) (int64, error) {
	defer s.lock()()

	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Subscription{})
	if err := tx.Error; err != nil {
		return 0, fmt.Errorf("delete subscriptions for user: %w", err)
	}
	return tx.RowsAffected, nil
}

// LatestPriceHistories returns up to n rows per URL, newest first. Every requested URL
// has an entry, empty when it has no history.
func (s *Store) LatestPriceHistories(ctx context.Context, urls []string, n int) (map[string]models.PriceHistories, error) {
	defer s.lock()()

	result := make(map[string]models.PriceHistories, len(urls))
	for _, url := range urls {
		rows := models.PriceHistories{}
		if n > 0 {
			tx := s.db.WithContext(ctx).
				Where("item_url = ?", url).
				Order("check_ts desc").
				Limit(n).
				Find(&rows)
			if err := tx.Error; err != nil {
				return nil, fmt.Errorf("price histories for %s: %w", url, err)
			}
		}
		result[url] = rows
	}
	return result, nil
}
