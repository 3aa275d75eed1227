package models

type TrackingOptions struct {
	Threshold    Threshold `json:"price_threshold"`
	OfficialOnly bool      `json:"official_sites_only"`
	Sizes        []string  `json:"size_requirement"`
}

func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{OfficialOnly: true, Sizes: []string{}}
}

// Subscription is one user's tracking of one item, together with what that user was
// last told about it.
type Subscription struct {
	UserID            string          `gorm:"column:user_id;primaryKey"`
	ItemURL           string          `gorm:"column:item_url;primaryKey;index"`
	Options           TrackingOptions `gorm:"column:options;serializer:json;not null"`
	LastInStock       bool            `gorm:"column:last_status;not null"`
	Name              string          `gorm:"column:name"`
	LastInStockSizes  []string        `gorm:"column:last_in_stock_sizes;serializer:json;not null"`
	LastInStockStores []string        `gorm:"column:last_in_stock_stores;serializer:json;not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

func NewSubscription(userID, itemURL string, opts TrackingOptions) *Subscription {
	return &Subscription{
		UserID:            userID,
		ItemURL:           itemURL,
		Options:           opts,
		LastInStockSizes:  []string{},
		LastInStockStores: []string{},
	}
}

// DisplayName falls back to the URL for items whose name never resolved.
func (s *Subscription) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ItemURL
}

type Subscriptions []Subscription
