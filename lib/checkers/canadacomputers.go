package checkers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/fiffu/stockwatch/lib/models"
	"golang.org/x/net/html"
)

var ccItemID = regexp.MustCompile(`item_id=(\w+)`)

const ccLandingTitle = "Welcome - Canada Computers & Electronics"

var ccHeaders = http.Header{
	"Dnt":                       {"1"},
	"Cache-Control":             {"max-age=0"},
	"Upgrade-Insecure-Requests": {"1"},
	"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"},
	"Sec-Fetch-Site":            {"none"},
	"Sec-Fetch-Mode":            {"navigate"},
	"Sec-Fetch-User":            {"?1"},
	"Sec-Fetch-Dest":            {"document"},
	"Accept-Language":           {"en-GB,en-US;q=0.9,en;q=0.8"},
}

// Stores whose stock is tracked, with the element that carries the store label.
var ccStores = []struct {
	name string
	tag  string
}{
	{"Burnaby", "a"},
	{"Coquitlam", "a"},
	{"Grandview", "a"},
	{"Richmond", "a"},
	{"Vancouver Broadway", "a"},
	{"Online Store", "p"},
}

// CanadaComputers reports stock per physical store. The site bans aggressive scrapers.
type CanadaComputers struct{}

func (*CanadaComputers) Site() models.Site { return models.SiteCanadaComputers }

func (*CanadaComputers) Resolve(u *url.URL, domain, suffix string) (string, error) {
	m := ccItemID.FindStringSubmatch(u.String())
	if m == nil {
		return "", fmt.Errorf("%w: no item_id in %s", ErrInvalidURL, u)
	}
	return "https://www.canadacomputers.com/product_info.php?cPath=13&item_id=" + m[1], nil
}

func (c *CanadaComputers) ResolveName(ctx context.Context, page Page, itemURL string) (string, error) {
	doc, err := page.Fetch(ctx, Request{URL: itemURL, Headers: ccHeaders})
	if err != nil {
		return "", err
	}
	return c.name(doc), nil
}

func (*CanadaComputers) name(doc *html.Node) string {
	name := Title(doc)
	if strings.Contains(ccLandingTitle, name) {
		return ""
	}
	return name
}

func (c *CanadaComputers) CheckStock(ctx context.Context, page Page, itemURL string) (*models.Snapshot, error) {
	doc, err := page.Fetch(ctx, Request{URL: itemURL, Headers: ccHeaders})
	if err != nil {
		return nil, err
	}
	// Product codes are only rendered on item pages.
	if htmlquery.FindOne(doc, "//p[contains(@class, 'm-0 text-small')]") == nil {
		return nil, errors.New("canadacomputers: not an item page")
	}

	prices := htmlquery.Find(doc, "//div[contains(@class, 'order-md-1')]//strong")
	if len(prices) == 0 {
		return nil, errors.New("canadacomputers: price not found")
	}
	price, err := ExtractPrice(digForText(prices[len(prices)-1]))
	if err != nil {
		return nil, fmt.Errorf("canadacomputers: %w", err)
	}

	snap := models.Unresolvable(itemURL)
	snap.ItemName = c.name(doc)
	snap.Resolvable = true
	snap.Price = models.SamePrice(price)
	snap.AvailableSizes = models.UnknownSizes()
	for _, store := range ccStores {
		if ccStoreInStock(doc, store.tag, store.name) {
			snap.InStock = true
			snap.InStockStores = append(snap.InStockStores, store.name)
		}
	}
	return snap, nil
}

func ccStoreInStock(doc *html.Node, tag, store string) bool {
	xpath := fmt.Sprintf("//%s[text() = '%s']/../../..//span[@class = 'stocknumber']", tag, store)
	node := htmlquery.FindOne(doc, xpath)
	if node == nil {
		return false
	}
	text := digForText(node)
	count, err := strconv.Atoi(strings.TrimSpace(strings.Split(text, "+")[0]))
	return err == nil && count > 0
}
