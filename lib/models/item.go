package models

import "time"

type Item struct {
	URL          string    `gorm:"column:url;primaryKey"`
	Site         Site      `gorm:"column:site;not null;index"`
	InStock      bool      `gorm:"column:in_stock;not null"`
	LastCheck    time.Time `gorm:"column:last_check_ts;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	LastSnapshot *Snapshot `gorm:"column:last_snapshot;serializer:json"`
}

func (Item) TableName() string { return "items" }

// NewItem returns an item that has never been checked, so the next poll picks it up.
func NewItem(url string, site Site, name string) *Item {
	return &Item{
		URL:       url,
		Site:      site,
		LastCheck: time.Unix(0, 0).UTC(),
		Name:      name,
	}
}

func (it *Item) FailCount() int {
	if it.LastSnapshot == nil {
		return 0
	}
	return it.LastSnapshot.FailCount
}

// PreviousPrice is the price recorded by the last check; absent when never checked.
func (it *Item) PreviousPrice(officialOnly bool) Price {
	if it.LastSnapshot == nil {
		return Price{}
	}
	return it.LastSnapshot.Price.For(officialOnly)
}

type Items []Item
