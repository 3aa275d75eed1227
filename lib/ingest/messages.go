package ingest

import (
	"fmt"
	"strings"

	"github.com/fiffu/stockwatch/lib/models"
)

func msgBanSuspected(site models.Site, url string) string {
	return fmt.Sprintf("The bot may have been banned from %s, %d checks in a row failed for %s", site, models.MaxFailures, url)
}

func msgUnavailable(name, url string) string {
	return fmt.Sprintf("You have been unsubscribed from tracking %s for %s because it may no longer be available or the bot got banned.", name, url)
}

func msgNoValidSizes(name, url string, sizes []string) string {
	return fmt.Sprintf("You have been unsubscribed from %s at %s because all of the size(s), %s, you specified are not valid for the item. "+
		`If the size is more than one word please wrap the size in quotations (ex. "US 0"). Please subscribe again with correct size(s).`,
		name, url, models.FormatSizes(sizes))
}

func msgSizesNarrowed(name, url string, invalid, valid []string) string {
	return fmt.Sprintf("Size(s) %s for item %s at %s do not exist. You are still subscribed for size(s) %s",
		models.FormatSizes(invalid), name, url, models.FormatSizes(valid))
}

func msgOutOfStock(name, url string) string {
	return fmt.Sprintf("%s at %s just went out of stock", name, url)
}

func msgPriceExceeded(item *models.Item, sub *models.Subscription, price models.Price) string {
	sellers := fmt.Sprintf("from any seller on %s", item.Site)
	if sub.Options.OfficialOnly {
		sellers = fmt.Sprintf("when sold by %s directly", item.Site)
	}
	return fmt.Sprintf("The price for %s (%s) %s at %s has exceeded your limit of %s",
		sub.DisplayName(), price, sellers, item.URL, sub.Options.Threshold)
}

func atStores(stores []string) string {
	if len(stores) == 0 {
		return ""
	}
	return " at location(s) " + strings.Join(stores, ", ")
}

func trackedSummary(trackedInStock []string) string {
	return fmt.Sprintf("In total, tracked size(s), %s, are in stock.", models.FormatSizes(trackedInStock))
}

func msgFoundStock(name, url string, price models.Price, newStores []string) string {
	return fmt.Sprintf("Found stock for %s for %s at %s%s", name, price, url, atStores(newStores))
}

func msgSizesInStock(name, url string, price models.Price, newSizes, newStores, trackedInStock []string) string {
	return fmt.Sprintf("Size(s) %s for %s just went in stock for %s at %s%s.\n%s",
		models.FormatSizes(newSizes), name, price, url, atStores(newStores), trackedSummary(trackedInStock))
}

func msgAllSizesGone(name, url string) string {
	return fmt.Sprintf("All size(s) being tracked for %s at %s are out of stock", name, url)
}

func msgSizesGone(name, url string, gone, trackedInStock []string) string {
	return fmt.Sprintf("Size(s) %s just went out of stock for %s at %s.\n%s",
		models.FormatSizes(gone), name, url, trackedSummary(trackedInStock))
}

func msgAllStoresGone(name, url string) string {
	return fmt.Sprintf("%s (%s) just went out of stock at all stores", name, url)
}

func msgStoresGone(name, url string, gone, remaining []string) string {
	return fmt.Sprintf("%s (%s) just went out of stock%s.\nIt is still in stock at location(s) %s",
		name, url, atStores(gone), strings.Join(remaining, ", "))
}
