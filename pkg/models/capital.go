package models

import "encoding/json"

// PricesResponse is the upstream price-history payload
type PricesResponse struct {
	Prices         []PricePoint `json:"prices"`
	InstrumentType string       `json:"instrumentType,omitempty"`
}

// PricePoint is one upstream bar
type PricePoint struct {
	SnapshotTime     string      `json:"snapshotTime"`
	SnapshotTimeUTC  string      `json:"snapshotTimeUTC"`
	OpenPrice        *PriceLevel `json:"openPrice"`
	HighPrice        *PriceLevel `json:"highPrice"`
	LowPrice         *PriceLevel `json:"lowPrice"`
	ClosePrice       *PriceLevel `json:"closePrice"`
	LastTradedVolume float64     `json:"lastTradedVolume"`
}

// PriceLevel holds the bid/ask sides of one price
type PriceLevel struct {
	Bid *float64 `json:"bid"`
	Ask *float64 `json:"ask"`
}

// Value returns the bid, falling back to the ask, then 0. A zero side counts
// as absent.
func (p *PriceLevel) Value() float64 {
	if p == nil {
		return 0
	}
	if p.Bid != nil && *p.Bid != 0 {
		return *p.Bid
	}
	if p.Ask != nil && *p.Ask != 0 {
		return *p.Ask
	}
	return 0
}

// MarketsResponse is the upstream instrument search payload
type MarketsResponse struct {
	Markets []Market `json:"markets"`
}

// Market is one instrument search hit
type Market struct {
	Epic           string `json:"epic"`
	MarketID       string `json:"marketId"`
	InstrumentName string `json:"instrumentName"`
	InstrumentType string `json:"instrumentType,omitempty"`
	MarketStatus   string `json:"marketStatus,omitempty"`
}

// ParseMarkets decodes a raw search body. Bodies without a markets array yield
// an empty result.
func ParseMarkets(body []byte) (*MarketsResponse, error) {
	var resp MarketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
