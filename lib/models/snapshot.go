package models

// MaxFailures is how many unresolvable checks in a row escalate an item.
const MaxFailures = 3

// Snapshot is one point-in-time read of an item page.
type Snapshot struct {
	ItemURL        string         `json:"item_url"`
	ItemName       string         `json:"item_name"`
	Resolvable     bool           `json:"is_item_available"`
	InStock        bool           `json:"is_in_stock"`
	Price          StockPrice     `json:"stock_price"`
	AvailableSizes AvailableSizes `json:"available_sizes"`
	InStockSizes   []string       `json:"in_stock_sizes"`
	InStockStores  []string       `json:"in_stock_stores"`
	FailCount      int            `json:"fail_count"`
}

// Unresolvable is the snapshot of a check that could not read the page.
func Unresolvable(itemURL string) *Snapshot {
	return &Snapshot{
		ItemURL:        itemURL,
		AvailableSizes: KnownSizes(),
		InStockSizes:   []string{},
		InStockStores:  []string{},
	}
}

// Equal decides whether a new price history row is needed. Name, resolvability and
// failure count do not take part.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ItemURL == other.ItemURL &&
		s.Price.Equal(other.Price) &&
		s.InStock == other.InStock &&
		s.AvailableSizes.Equal(other.AvailableSizes) &&
		SameSet(s.InStockSizes, other.InStockSizes) &&
		SameSet(s.InStockStores, other.InStockStores)
}
