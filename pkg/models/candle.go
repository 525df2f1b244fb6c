package models

// CandleSeries is the canonical, provider-agnostic bar series. Index i across
// every slice describes one bar.
type CandleSeries struct {
	Symbol          string     `json:"symbol"`
	RequestedSymbol string     `json:"requestedSymbol"`
	Resolution      Resolution `json:"resolution"`
	Timestamps      []int64    `json:"timestamp"`
	Opens           []float64  `json:"open"`
	Highs           []float64  `json:"high"`
	Lows            []float64  `json:"low"`
	Closes          []float64  `json:"close"`
	Volumes         []float64  `json:"volume"`
}

// Len returns the number of bars
func (c *CandleSeries) Len() int {
	return len(c.Timestamps)
}

// ChartResponse is the Yahoo-style chart envelope served to clients
type ChartResponse struct {
	Chart ChartBody `json:"chart"`
}

// ChartBody wraps the result list
type ChartBody struct {
	Result []ChartResult `json:"result"`
}

// ChartResult carries one series
type ChartResult struct {
	Meta       ChartMeta       `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators ChartIndicators `json:"indicators"`
}

// ChartMeta describes which instrument and resolution actually served the data
type ChartMeta struct {
	Symbol          string      `json:"symbol"`
	RequestedSymbol string      `json:"requestedSymbol"`
	Resolution      *Resolution `json:"resolution"`
	Currency        string      `json:"currency"`
	ExchangeName    string      `json:"exchangeName"`
	Fallback        *FetchTrace `json:"fallback,omitempty"`
}

// ChartIndicators holds the quote arrays
type ChartIndicators struct {
	Quote []ChartQuote `json:"quote"`
}

// ChartQuote holds index-aligned OHLCV arrays
type ChartQuote struct {
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume"`
}

// NewChartResponse renders a series into the chart envelope. Nil slices are
// emitted as empty arrays so consumers never see missing fields.
func NewChartResponse(series *CandleSeries, currency, exchangeName string, trace *FetchTrace) *ChartResponse {
	meta := ChartMeta{
		Symbol:          series.Symbol,
		RequestedSymbol: series.RequestedSymbol,
		Currency:        currency,
		ExchangeName:    exchangeName,
		Fallback:        trace,
	}
	if meta.RequestedSymbol == "" {
		meta.RequestedSymbol = series.Symbol
	}
	if series.Resolution != "" {
		res := series.Resolution
		meta.Resolution = &res
	}

	return &ChartResponse{
		Chart: ChartBody{
			Result: []ChartResult{{
				Meta:      meta,
				Timestamp: nonNilInts(series.Timestamps),
				Indicators: ChartIndicators{
					Quote: []ChartQuote{{
						Open:   nonNilFloats(series.Opens),
						High:   nonNilFloats(series.Highs),
						Low:    nonNilFloats(series.Lows),
						Close:  nonNilFloats(series.Closes),
						Volume: nonNilFloats(series.Volumes),
					}},
				},
			}},
		},
	}
}

func nonNilInts(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
