package app

import (
	"slices"
	"strings"

	"github.com/fiffu/stockwatch/lib"
	"github.com/fiffu/stockwatch/lib/models"
)

type SubscriptionView struct {
	UserID       string   `json:"user_id"`
	URL          string   `json:"url"`
	Name         string   `json:"name"`
	Threshold    *float64 `json:"price_threshold"`
	OfficialOnly bool     `json:"official_only"`
	Sizes        []string `json:"sizes"`
	InStock      bool     `json:"last_in_stock"`
	History      []string `json:"history,omitempty"`
}

func (view SubscriptionView) From(entity lib.SubscriptionInfo) SubscriptionView {
	var threshold *float64
	if entity.Options.Threshold.Set {
		limit := entity.Options.Threshold.Limit
		threshold = &limit
	}
	sizes := entity.Options.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	return SubscriptionView{
		UserID:       entity.UserID,
		URL:          entity.ItemURL,
		Name:         entity.DisplayName(),
		Threshold:    threshold,
		OfficialOnly: entity.Options.OfficialOnly,
		Sizes:        sizes,
		InStock:      entity.LastInStock,
	}
}

type SubscribedView struct {
	SubscriptionView
	Message string `json:"message"`
}

type ItemHistoryView struct {
	URL     string   `json:"url"`
	Name    string   `json:"name"`
	History []string `json:"history"`
}

func (view ItemHistoryView) From(url string, rows models.PriceHistories, lines []string) ItemHistoryView {
	name := url
	if len(rows) > 0 && rows[0].Snapshot.ItemName != "" {
		name = rows[0].Snapshot.ItemName
	}
	if lines == nil {
		lines = []string{}
	}
	return ItemHistoryView{URL: url, Name: name, History: lines}
}

type HistoryResponseView struct {
	Items   []ItemHistoryView `json:"items"`
	Invalid []string          `json:"invalid"`
}

func sortItemHistories(items []ItemHistoryView) {
	slices.SortFunc(items, func(a, b ItemHistoryView) int {
		return strings.Compare(a.URL, b.URL)
	})
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}
