package checkers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/fiffu/stockwatch/lib/models"
)

const ppSoldOut = "(Sold Out – Notify Me)"

// PrincessPolly lists every size in a selector; sold out sizes stay listed with a marker.
type PrincessPolly struct{}

func (*PrincessPolly) Site() models.Site { return models.SitePrincessPolly }

func (*PrincessPolly) Resolve(u *url.URL, domain, suffix string) (string, error) {
	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""
	return canonical.String(), nil
}

func (*PrincessPolly) ResolveName(ctx context.Context, page Page, itemURL string) (string, error) {
	doc, err := page.Fetch(ctx, Request{URL: itemURL})
	if err != nil {
		return "", err
	}
	return Title(doc), nil
}

func (*PrincessPolly) CheckStock(ctx context.Context, page Page, itemURL string) (*models.Snapshot, error) {
	doc, err := page.Fetch(ctx, Request{URL: itemURL})
	if err != nil {
		return nil, err
	}

	priceText := SelectText(doc, "//span[@data-product-price]")
	if priceText == "" {
		return nil, errors.New("princesspolly: price not found")
	}
	price, err := ExtractPrice(priceText)
	if err != nil {
		return nil, fmt.Errorf("princesspolly: %w", err)
	}

	snap := models.Unresolvable(itemURL)
	snap.Resolvable = true
	snap.Price = models.SamePrice(price)
	for _, option := range htmlquery.Find(doc, "//select[@id='SingleOptionSelector-1']/option[not(@disabled)]") {
		size := models.NormalizeSize(attr(option, "value"))
		snap.AvailableSizes.Add(size)
		if !strings.Contains(digForText(option), ppSoldOut) {
			snap.InStockSizes = append(snap.InStockSizes, size)
		}
	}
	snap.InStock = len(snap.InStockSizes) > 0
	return snap, nil
}
