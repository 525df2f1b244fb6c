package services

import (
	"github.com/chart-proxy/internal/exchange"
	"github.com/chart-proxy/pkg/models"
)

// ToCanonical converts an upstream price payload into a CandleSeries. It
// never fails: missing fields become zero and records keep upstream order.
func ToCanonical(payload *models.PricesResponse, usedEpic string, usedRes models.Resolution, requested string) *models.CandleSeries {
	series := &models.CandleSeries{
		Symbol:          usedEpic,
		RequestedSymbol: requested,
		Resolution:      usedRes,
		Timestamps:      []int64{},
		Opens:           []float64{},
		Highs:           []float64{},
		Lows:            []float64{},
		Closes:          []float64{},
		Volumes:         []float64{},
	}
	if series.RequestedSymbol == "" {
		series.RequestedSymbol = usedEpic
	}
	if payload == nil {
		return series
	}

	n := len(payload.Prices)
	series.Timestamps = make([]int64, 0, n)
	series.Opens = make([]float64, 0, n)
	series.Highs = make([]float64, 0, n)
	series.Lows = make([]float64, 0, n)
	series.Closes = make([]float64, 0, n)
	series.Volumes = make([]float64, 0, n)

	for _, p := range payload.Prices {
		series.Timestamps = append(series.Timestamps, snapshotUnix(p))
		series.Opens = append(series.Opens, p.OpenPrice.Value())
		series.Highs = append(series.Highs, p.HighPrice.Value())
		series.Lows = append(series.Lows, p.LowPrice.Value())
		series.Closes = append(series.Closes, p.ClosePrice.Value())
		series.Volumes = append(series.Volumes, p.LastTradedVolume)
	}
	return series
}

// snapshotUnix prefers snapshotTimeUTC; snapshotTime is in the market's
// local zone and is only used when the UTC field is missing
func snapshotUnix(p models.PricePoint) int64 {
	raw := p.SnapshotTimeUTC
	if raw == "" {
		raw = p.SnapshotTime
	}
	t, ok := exchange.ParseInstant(raw)
	if !ok {
		return 0
	}
	return t.Unix()
}
