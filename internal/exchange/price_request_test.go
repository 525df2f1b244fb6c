package exchange

import (
	"testing"
	"time"

	"github.com/chart-proxy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 34, 56, 0, time.UTC)

func TestBuildPriceRequestShrinksIntradayWindow(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionMinute5, "2024-01-01T00:00:00", "2024-01-10T00:00:00", testNow)

	assert.Equal(t, "2024-01-06T12:40:00", req.FromParam())
	assert.Equal(t, "2024-01-10T00:00:00", req.ToParam())
	assert.Equal(t, MaxBars*5*time.Minute, req.To.Sub(req.From))
	assert.NotEmpty(t, req.Adjustments)

	q := req.Query()
	assert.Equal(t, "MINUTE_5", q.Get("resolution"))
	assert.Equal(t, "1000", q.Get("max"))
}

func TestBuildPriceRequestClampsFutureTo(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionDay, "2024-05-01", "2030-01-01T00:00:00Z", testNow)

	assert.Equal(t, "2024-05-01T00:00:00", req.FromParam())
	assert.Equal(t, "2024-06-01T00:00:00", req.ToParam())
}

func TestBuildPriceRequestFromAfterTo(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionDay, "2024-05-10", "2024-05-01", testNow)

	assert.Equal(t, "2024-05-01T00:00:00", req.ToParam())
	require.False(t, req.From.IsZero())
	assert.True(t, req.From.Before(req.To))
	assert.Equal(t, 1000*24*time.Hour, req.To.Sub(req.From))
}

func TestBuildPriceRequestSameDay(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionDay, "2024-05-01T10:00:00", "2024-05-01T18:00:00", testNow)

	assert.Equal(t, "2024-04-30T00:00:00", req.FromParam())
	assert.Equal(t, "2024-05-01T00:00:00", req.ToParam())
}

func TestBuildPriceRequestUnknownResolutionStepsOneDay(t *testing.T) {
	req := BuildPriceRequest("US500", models.Resolution("SECOND"), "2024-05-01T10:00:00", "2024-05-01T10:00:00", testNow)

	assert.Equal(t, "2024-04-30T10:00:00", req.FromParam())
	assert.Equal(t, "2024-05-01T10:00:00", req.ToParam())
}

func TestBuildPriceRequestDropsUnparsableFrom(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionHour, "yesterday", "", testNow)

	assert.Empty(t, req.FromParam())
	assert.Empty(t, req.ToParam())
	assert.Contains(t, req.Adjustments, "from unparsable, dropped")

	q := req.Query()
	assert.False(t, q.Has("from"))
	assert.False(t, q.Has("to"))
}

func TestBuildPriceRequestSynthesizesFromForIntraday(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionHour, "", "2024-05-01T10:30:00", testNow)

	assert.Equal(t, "2024-03-20T18:00:00", req.FromParam())
	assert.Equal(t, "2024-05-01T10:00:00", req.ToParam())
}

func TestBuildPriceRequestToOnlyDaily(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionDay, "", "2024-05-01T10:30:00", testNow)

	assert.Empty(t, req.FromParam())
	assert.Equal(t, "2024-05-01T10:30:00", req.ToParam())
}

func TestBuildPriceRequestNoRange(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionDay, "", "", testNow)

	assert.Empty(t, req.FromParam())
	assert.Empty(t, req.ToParam())
	assert.Empty(t, req.Adjustments)
	assert.Equal(t, "max=1000&resolution=DAY", req.Query().Encode())
}

func TestBuildPriceRequestPassesThroughUnrepresentableRange(t *testing.T) {
	req := BuildPriceRequest("US500", models.ResolutionWeek, "0001-06-10", "0001-06-01", testNow)

	assert.Equal(t, "0001-06-10", req.FromParam())
	assert.Equal(t, "0001-06-01", req.ToParam())
	assert.Len(t, req.Adjustments, 1)
}

func TestBuildPriceRequestProperties(t *testing.T) {
	ranges := []struct{ from, to string }{
		{"2024-01-01", "2024-05-01"},
		{"2024-05-01T13:07:11Z", "2024-05-01T13:07:11Z"},
		{"2024-05-02", "2024-05-01"},
		{"1704067200", "1714521600000"},
		{"2023-01-01T00:00:00+02:00", "2099-01-01"},
		{"", "2024-05-01T09:59:59"},
	}

	for _, res := range models.AllResolutions() {
		for _, r := range ranges {
			req := BuildPriceRequest("US500", res, r.from, r.to, testNow)
			if req.From.IsZero() || req.To.IsZero() {
				continue
			}

			assert.True(t, req.From.Before(req.To), "%s %v", res, r)
			assert.False(t, req.To.After(testNow), "%s %v", res, r)

			if res.IsIntraday() {
				bar := res.BarSeconds()
				assert.LessOrEqual(t, req.To.Unix()-req.From.Unix(), int64(MaxBars)*bar, "%s %v", res, r)
				assert.Zero(t, req.From.Unix()%bar, "%s %v", res, r)
				assert.Zero(t, req.To.Unix()%bar, "%s %v", res, r)
			} else {
				assert.Zero(t, req.From.Unix()%models.SecondsPerDay, "%s %v", res, r)
				assert.Zero(t, req.To.Unix()%models.SecondsPerDay, "%s %v", res, r)
			}
		}
	}
}

func TestParseInstant(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-01-01",
		"2024-01-01T00:00:00",
		"2024-01-01T00:00:00Z",
		"2024-01-01T02:00:00+02:00",
		"2024-01-01T00:00:00.250",
		"2024-01-01 00:00:00",
		"1704067200",
		"1704067200000",
	} {
		got, ok := ParseInstant(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, ok := ParseInstant("not a date")
	assert.False(t, ok)
	_, ok = ParseInstant("  ")
	assert.False(t, ok)
}

func TestAlignToBarNegative(t *testing.T) {
	got := alignToBar(time.Unix(-1, 0), 60)
	assert.Equal(t, int64(-60), got.Unix())
}
