package models

import "time"

type PriceHistory struct {
	ItemURL   string    `gorm:"column:item_url;primaryKey"`
	CheckTime time.Time `gorm:"column:check_ts;primaryKey"`
	Snapshot  Snapshot  `gorm:"column:snapshot;serializer:json;not null"`
}

func (PriceHistory) TableName() string { return "price_history" }

type PriceHistories []PriceHistory

// Notification is the set of messages one recipient should get for one processed check.
type Notification struct {
	Recipient string
	Messages  []string
}
