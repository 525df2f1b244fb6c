package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchSubject(t *testing.T) {
	assert.Equal(t, "chart.fetch.US500", FetchSubject("chart.fetch", "US500"))
	assert.Equal(t, "chart.fetch.VIX_XO", FetchSubject("chart.fetch", "VIX.XO"))
	assert.Equal(t, "chart.fetch.S_P_500", FetchSubject("chart.fetch", "S&P 500"))
	assert.Equal(t, "chart.fetch.a_b__", FetchSubject("chart.fetch", "a*b>."))
	assert.Equal(t, "chart.fetch.unknown", FetchSubject("chart.fetch", ""))
}
