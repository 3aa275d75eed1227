package checkers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/antchfx/htmlquery"
	"github.com/fiffu/stockwatch/lib/models"
)

var evgaHeaders = http.Header{
	"Authority":                 {"www.evga.com"},
	"Dnt":                       {"1"},
	"Upgrade-Insecure-Requests": {"1"},
	"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
	"Sec-Fetch-User":            {"?1"},
	"Sec-Fetch-Site":            {"none"},
	"Sec-Fetch-Mode":            {"navigate"},
	"Sec-Fetch-Dest":            {"document"},
	"Accept-Language":           {"en-GB,en;q=0.9"},
}

// EVGA sells directly, so there is a single price and stock is an add-to-cart button.
type EVGA struct{}

func (*EVGA) Site() models.Site { return models.SiteEVGA }

func (*EVGA) Resolve(u *url.URL, domain, suffix string) (string, error) {
	return u.String(), nil
}

func (*EVGA) ResolveName(ctx context.Context, page Page, itemURL string) (string, error) {
	doc, err := page.Fetch(ctx, Request{URL: itemURL, Headers: evgaHeaders})
	if err != nil {
		return "", err
	}
	return Title(doc), nil
}

func (*EVGA) CheckStock(ctx context.Context, page Page, itemURL string) (*models.Snapshot, error) {
	doc, err := page.Fetch(ctx, Request{URL: itemURL, Headers: evgaHeaders})
	if err != nil {
		return nil, err
	}

	whole := SelectText(doc, "//span[@id='LFrame_spanFinalPrice']//strong")
	cents := SelectText(doc, "//span[@id='LFrame_spanFinalPrice']//sup")
	if whole == "" {
		return nil, errors.New("evga: price not found")
	}
	price, err := ExtractPrice(whole + cents)
	if err != nil {
		return nil, fmt.Errorf("evga: %w", err)
	}

	snap := models.Unresolvable(itemURL)
	snap.Resolvable = true
	snap.Price = models.SamePrice(price)
	snap.AvailableSizes = models.UnknownSizes()
	snap.InStock = htmlquery.FindOne(doc, "//a[@id='LFrame_btnAddToCart']") != nil
	return snap, nil
}
