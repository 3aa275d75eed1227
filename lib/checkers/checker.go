package checkers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fiffu/stockwatch/lib/models"
	"golang.org/x/net/publicsuffix"
)

var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrUnsupportedSite = errors.New("unsupported site")
)

// Checker reads one site's product pages.
type Checker interface {
	Site() models.Site
	// Resolve maps a user-supplied URL to the canonical URL that is stored and polled.
	Resolve(u *url.URL, domain, suffix string) (string, error)
	CheckStock(ctx context.Context, page Page, itemURL string) (*models.Snapshot, error)
	ResolveName(ctx context.Context, page Page, itemURL string) (string, error)
}

type Registry map[models.Site]Checker

func NewRegistry() Registry {
	return NewRegistryOf(
		&CanadaComputers{},
		&EVGA{},
		&PrincessPolly{},
	)
}

func NewRegistryOf(checkers ...Checker) Registry {
	reg := make(Registry, len(checkers))
	for _, c := range checkers {
		reg[c.Site()] = c
	}
	return reg
}

func (reg Registry) Get(site models.Site) (Checker, error) {
	c, ok := reg[site]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSite, site)
	}
	return c, nil
}

func (reg Registry) Sites() models.Sites {
	sites := make(models.Sites, 0, len(reg))
	for site := range reg {
		sites = append(sites, site)
	}
	return sites
}

// Resolve identifies the site behind rawURL by its registrable domain and returns the
// canonical URL for it.
func (reg Registry) Resolve(rawURL string) (string, models.Site, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	host := u.Hostname()
	suffix, _ := publicsuffix.PublicSuffix(host)
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	domain := strings.TrimSuffix(registrable, "."+suffix)

	c, err := reg.Get(models.Site(domain))
	if err != nil {
		return "", "", err
	}
	canonical, err := c.Resolve(u, domain, suffix)
	if err != nil {
		return "", "", err
	}
	return canonical, c.Site(), nil
}
