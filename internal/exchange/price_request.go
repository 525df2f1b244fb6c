package exchange

import (
	"strconv"
	"strings"
	"time"

	"net/url"

	"github.com/chart-proxy/pkg/models"
)

// MaxBars is the number of bars requested per price call and the window size
// used when clamping intraday ranges
const MaxBars = 1000

// capitalTimeLayout is the upstream date format: UTC without zone suffix
const capitalTimeLayout = "2006-01-02T15:04:05"

var inputLayouts = []string{
	time.RFC3339,
	capitalTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// PriceRequest is a validated upstream price-history request
type PriceRequest struct {
	Epic       string
	Resolution models.Resolution

	// From and To are zero when the parameter is not sent
	From time.Time
	To   time.Time

	// RawFrom and RawTo are sent verbatim when the range could not be adjusted
	RawFrom string
	RawTo   string

	MaxBars     int
	Adjustments []string
}

// FromParam returns the value sent as "from", or ""
func (r PriceRequest) FromParam() string {
	if !r.From.IsZero() {
		return r.From.UTC().Format(capitalTimeLayout)
	}
	return r.RawFrom
}

// ToParam returns the value sent as "to", or ""
func (r PriceRequest) ToParam() string {
	if !r.To.IsZero() {
		return r.To.UTC().Format(capitalTimeLayout)
	}
	return r.RawTo
}

// Query renders the request's query string parameters
func (r PriceRequest) Query() url.Values {
	q := url.Values{}
	q.Set("resolution", string(r.Resolution))
	if from := r.FromParam(); from != "" {
		q.Set("from", from)
	}
	if to := r.ToParam(); to != "" {
		q.Set("to", to)
	}
	q.Set("max", strconv.Itoa(r.MaxBars))
	return q
}

// BuildPriceRequest turns a caller's range into one the upstream accepts.
// Intraday windows are capped at MaxBars bars and aligned to bar boundaries,
// daily and weekly ranges are truncated to midnight UTC, and "to" never lies
// in the future. It never fails: if adjustment produces unrepresentable
// instants the caller's strings are passed through unchanged.
func BuildPriceRequest(epic string, resolution models.Resolution, from, to string, now time.Time) PriceRequest {
	req := PriceRequest{
		Epic:       epic,
		Resolution: resolution,
		MaxBars:    MaxBars,
	}

	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	now = now.UTC().Truncate(time.Second)

	bar := resolution.BarSeconds()
	intraday := resolution.IsIntraday()
	step := bar
	if step == 0 {
		step = models.SecondsPerDay
	}
	window := time.Duration(MaxBars*bar) * time.Second

	var notes []string
	toTime := now
	if to != "" {
		if t, ok := ParseInstant(to); !ok {
			notes = append(notes, "to unparsable, using now")
		} else if t.After(now) {
			notes = append(notes, "to in the future, clamped to now")
		} else {
			toTime = t
		}
	}

	var fromTime time.Time
	switch {
	case from != "":
		t, ok := ParseInstant(from)
		if !ok {
			// let the upstream infer its default window
			notes = append(notes, "from unparsable, dropped")
			if to != "" {
				req.To = toTime
			}
			break
		}
		fromTime = t

		if fromTime.After(toTime) {
			fromTime = toTime.Add(-window)
			notes = append(notes, "from after to, reset to a full window")
		}
		if intraday {
			if toTime.Sub(fromTime) > window {
				fromTime = toTime.Add(-window)
				notes = append(notes, "window shrunk to max bars")
			}
			fromTime = alignToBar(fromTime, bar)
			toTime = alignToBar(toTime, bar)
		} else if bar >= models.SecondsPerDay {
			fromTime = truncateToDay(fromTime)
			toTime = truncateToDay(toTime)
		}
		if !fromTime.Before(toTime) {
			fromTime = toTime.Add(-time.Duration(step) * time.Second)
			notes = append(notes, "from moved one bar before to")
		}
		req.From, req.To = fromTime, toTime

	case to != "" && intraday:
		toTime = alignToBar(toTime, bar)
		fromTime = alignToBar(toTime.Add(-window), bar)
		if !fromTime.Before(toTime) {
			fromTime = toTime.Add(-time.Duration(bar) * time.Second)
		}
		notes = append(notes, "from synthesized for max bars")
		req.From, req.To = fromTime, toTime

	case to != "":
		req.To = toTime
	}

	if !representable(req.From) || !representable(req.To) {
		req.From, req.To = time.Time{}, time.Time{}
		req.RawFrom, req.RawTo = from, to
		req.Adjustments = []string{"range adjustment skipped, passing caller values through"}
		return req
	}

	req.Adjustments = notes
	return req
}

// ParseInstant parses the date formats callers send. Values without a zone
// are UTC; bare integers are unix seconds, or milliseconds when large.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n >= 1e11 || n <= -1e11 {
			return time.UnixMilli(n).UTC().Truncate(time.Second), true
		}
		return time.Unix(n, 0).UTC(), true
	}

	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

// alignToBar floors t to a multiple of barSeconds since the epoch
func alignToBar(t time.Time, barSeconds int64) time.Time {
	if barSeconds <= 0 {
		return t
	}
	secs := t.Unix()
	rem := secs % barSeconds
	if rem < 0 {
		rem += barSeconds
	}
	return time.Unix(secs-rem, 0).UTC()
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func representable(t time.Time) bool {
	return t.IsZero() || (t.Year() >= 1 && t.Year() <= 9999)
}
