package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCanonical(t *testing.T) {
	var payload models.PricesResponse
	require.NoError(t, json.Unmarshal([]byte(`{"prices":[
		{"snapshotTime":"2024-10-14T10:00:00","openPrice":{"bid":1.5,"ask":1.6},"highPrice":{"bid":2},"lowPrice":{"ask":1},"closePrice":{"bid":1.8},"lastTradedVolume":42},
		{"snapshotTimeUTC":"2024-10-14T11:00:00.750","openPrice":{"bid":0,"ask":1.7},"highPrice":{},"closePrice":null},
		{"snapshotTime":"garbage"}
	]}`), &payload))

	series := ToCanonical(&payload, "US500", models.ResolutionHour, "SPX")

	assert.Equal(t, "US500", series.Symbol)
	assert.Equal(t, "SPX", series.RequestedSymbol)
	assert.Equal(t, models.ResolutionHour, series.Resolution)
	assert.Equal(t, []int64{1728900000, 1728903600, 0}, series.Timestamps)
	assert.Equal(t, []float64{1.5, 1.7, 0}, series.Opens)
	assert.Equal(t, []float64{2, 0, 0}, series.Highs)
	assert.Equal(t, []float64{1, 0, 0}, series.Lows)
	assert.Equal(t, []float64{1.8, 0, 0}, series.Closes)
	assert.Equal(t, []float64{42, 0, 0}, series.Volumes)

	n := series.Len()
	for _, s := range [][]float64{series.Opens, series.Highs, series.Lows, series.Closes, series.Volumes} {
		assert.Len(t, s, n)
	}
}

func TestToCanonicalPrefersUTCSnapshot(t *testing.T) {
	payload := &models.PricesResponse{Prices: []models.PricePoint{
		{SnapshotTime: "2024-10-14T13:00:00", SnapshotTimeUTC: "2024-10-14T10:00:00"},
		{SnapshotTime: "2024-10-14T14:00:00"},
	}}

	series := ToCanonical(payload, "US500", models.ResolutionHour, "")

	assert.Equal(t, []int64{1728900000, 1728914400}, series.Timestamps)
}

func TestToCanonicalEmpty(t *testing.T) {
	for _, payload := range []*models.PricesResponse{nil, {}} {
		series := ToCanonical(payload, "US500", models.ResolutionDay, "")
		assert.Equal(t, "US500", series.RequestedSymbol)
		assert.NotNil(t, series.Timestamps)
		assert.Empty(t, series.Timestamps)
		assert.NotNil(t, series.Volumes)
	}
}

func TestSummarizeError(t *testing.T) {
	assert.Equal(t, "", summarizeError(""))
	assert.Equal(t, "error.invalid.daterange", summarizeError(`{"errorCode":"error.invalid.daterange","message":"x"}`))
	assert.Equal(t, "bad range", summarizeError(`{"message":"bad range"}`))
	assert.Equal(t, `{"detail":"x"}`, summarizeError(`{ "detail" : "x" }`))
	assert.Equal(t, "plain text", summarizeError("plain text"))

	long := `{"detail":"` + strings.Repeat("a", 300) + `"}`
	assert.Len(t, summarizeError(long), 180)

	text := strings.Repeat("b", 200)
	got := summarizeError(text)
	assert.Len(t, got, 180)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSummarizeErrorKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("b", 176) + strings.Repeat("é", 10)
	got := summarizeError(text)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("b", 176)+"...", got)

	long := `{"detail":"` + strings.Repeat("é", 200) + `"}`
	got = summarizeError(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxSummaryLen-1, len(got))
}

type fakePublisher struct {
	events []*models.FetchEvent
	err    error
}

func (f *fakePublisher) PublishFetchEvent(event *models.FetchEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func TestChartServicePublishesEvents(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	calls := 0
	prices := &fakePrices{handler: func(ctx context.Context, epic string, res models.Resolution) (*models.PricesResponse, error) {
		calls++
		if calls == 1 {
			return okPayload(), nil
		}
		return nil, apiErr(http.StatusInternalServerError, "")
	}}
	svc, _ := newTestService(prices, nil)
	pub := &fakePublisher{err: errors.New("not connected")}
	charts := NewChartService(svc, pub, "USD", "Capital.com", logger)

	resp, err := charts.GetChart(context.Background(), "US500", models.ResolutionDay, "", "")
	require.NoError(t, err)

	result := resp.Chart.Result[0]
	assert.Equal(t, "US500", result.Meta.Symbol)
	assert.Equal(t, "USD", result.Meta.Currency)
	assert.Equal(t, "Capital.com", result.Meta.ExchangeName)
	require.NotNil(t, result.Meta.Resolution)
	assert.Equal(t, models.ResolutionDay, *result.Meta.Resolution)
	assert.Equal(t, []float64{100}, result.Indicators.Quote[0].Open)

	_, err = charts.GetChart(context.Background(), "US500", models.ResolutionDay, "", "")
	require.Error(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, 1, pub.events[0].Bars)
	assert.Equal(t, "US500", pub.events[0].UsedEpic)
	assert.NotEmpty(t, pub.events[0].ID)
	assert.Empty(t, pub.events[0].Error)
	assert.NotEmpty(t, pub.events[1].Error)
	assert.Len(t, pub.events[1].Attempts, 1)
}
