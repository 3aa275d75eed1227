package models

type Site string

const (
	SiteCanadaComputers Site = "canadacomputers"
	SiteEVGA            Site = "evga"
	SitePrincessPolly   Site = "princesspolly"
)

// Class decides which poll loop drives a site.
type Class int

const (
	ClassRequest Class = iota // plain HTTP request, checked concurrently
	ClassBrowser              // rendered in a browser session, checked serially
)

func (c Class) String() string {
	if c == ClassBrowser {
		return "browser"
	}
	return "request"
}

type Sites []Site

func (ss Sites) Contains(site Site) bool {
	for _, s := range ss {
		if s == site {
			return true
		}
	}
	return false
}

func (ss Sites) Strings() []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
