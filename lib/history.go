package lib

import (
	"fmt"
	"strings"
	"time"

	"github.com/fiffu/stockwatch/lib/models"
)

const historyTimeLayout = "01/02/2006, 03:04 PM"

// HistoryLines renders history rows for display in the configured time zone.
func (svc *Service) HistoryLines(histories models.PriceHistories) []string {
	loc := svc.cfg.HistoryLocation()
	lines := make([]string, len(histories))
	for i, h := range histories {
		site := ""
		if _, s, err := svc.registry.Resolve(h.ItemURL); err == nil {
			site = string(s)
		}
		lines[i] = FormatHistory(h, site, loc)
	}
	return lines
}

func FormatHistory(h models.PriceHistory, site string, loc *time.Location) string {
	when := h.CheckTime.In(loc).Format(historyTimeLayout)
	snap := h.Snapshot
	if !snap.InStock {
		return when + " - Not in stock"
	}

	price := "min price: " + snap.Price.MinPrice.String()
	if official := snap.Price.MinOfficialPrice; official.Valid {
		byWebsite := fmt.Sprintf("min price (%s): %s", site, official)
		if official.Equal(snap.Price.MinPrice) {
			price = byWebsite
		} else {
			price += ", " + byWebsite
		}
	}

	var b strings.Builder
	b.WriteString(when)
	b.WriteString(" - ")
	b.WriteString(price)
	if len(snap.InStockSizes) > 0 {
		b.WriteString(", in-stock sizes: " + models.FormatSizes(snap.InStockSizes))
	}
	if len(snap.InStockStores) > 0 {
		b.WriteString(", in-stock location(s): " + strings.Join(snap.InStockStores, ", "))
	}
	return b.String()
}
