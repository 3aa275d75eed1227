package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Price is an amount a site reported. The zero value means the site reported no price.
type Price struct {
	Amount float64
	Valid  bool
}

func NewPrice(amount float64) Price {
	return Price{Amount: amount, Valid: true}
}

// Equal compares at cent precision.
func (p Price) Equal(other Price) bool {
	if p.Valid != other.Valid {
		return false
	}
	return !p.Valid || math.Round(p.Amount*100) == math.Round(other.Amount*100)
}

func (p Price) String() string {
	if !p.Valid {
		return "unknown price"
	}
	return fmt.Sprintf("$%.2f", p.Amount)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Amount)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var amount *float64
	if err := json.Unmarshal(data, &amount); err != nil {
		return err
	}
	*p = Price{}
	if amount != nil {
		*p = NewPrice(*amount)
	}
	return nil
}

// Threshold is a subscriber's price ceiling. The zero value means no ceiling.
type Threshold struct {
	Limit float64
	Set   bool
}

func NewThreshold(limit float64) Threshold {
	return Threshold{Limit: limit, Set: true}
}

// Satisfied reports whether price is acceptable. An absent price never is; an absent
// threshold accepts any present price. Both sides are rounded up to the whole unit.
func (t Threshold) Satisfied(price Price) bool {
	if !price.Valid {
		return false
	}
	if !t.Set {
		return true
	}
	return math.Ceil(price.Amount) <= math.Ceil(t.Limit)
}

func (t Threshold) String() string {
	if !t.Set {
		return "any price"
	}
	return fmt.Sprintf("$%.2f", t.Limit)
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	return json.Marshal(t.Limit)
}

func (t *Threshold) UnmarshalJSON(data []byte) error {
	var limit *float64
	if err := json.Unmarshal(data, &limit); err != nil {
		return err
	}
	*t = Threshold{}
	if limit != nil {
		*t = NewThreshold(*limit)
	}
	return nil
}

// StockPrice holds the cheapest price from any seller and from the site itself.
type StockPrice struct {
	MinPrice         Price `json:"min_price"`
	MinOfficialPrice Price `json:"min_official_price"`
}

func (sp StockPrice) Equal(other StockPrice) bool {
	return sp.MinPrice.Equal(other.MinPrice) && sp.MinOfficialPrice.Equal(other.MinOfficialPrice)
}

// For picks the price relevant to a subscriber.
func (sp StockPrice) For(officialOnly bool) Price {
	if officialOnly {
		return sp.MinOfficialPrice
	}
	return sp.MinPrice
}

func SamePrice(amount float64) StockPrice {
	p := NewPrice(amount)
	return StockPrice{MinPrice: p, MinOfficialPrice: p}
}
