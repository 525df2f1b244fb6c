package models

import "strings"

// Resolution is the bar granularity understood by the upstream price API
type Resolution string

const (
	ResolutionMinute   Resolution = "MINUTE"
	ResolutionMinute5  Resolution = "MINUTE_5"
	ResolutionMinute15 Resolution = "MINUTE_15"
	ResolutionMinute30 Resolution = "MINUTE_30"
	ResolutionHour     Resolution = "HOUR"
	ResolutionHour4    Resolution = "HOUR_4"
	ResolutionDay      Resolution = "DAY"
	ResolutionWeek     Resolution = "WEEK"
)

// SecondsPerDay is the bar length that separates intraday from daily resolutions
const SecondsPerDay int64 = 86400

var barSeconds = map[Resolution]int64{
	ResolutionMinute:   60,
	ResolutionMinute5:  5 * 60,
	ResolutionMinute15: 15 * 60,
	ResolutionMinute30: 30 * 60,
	ResolutionHour:     60 * 60,
	ResolutionHour4:    4 * 60 * 60,
	ResolutionDay:      SecondsPerDay,
	ResolutionWeek:     7 * SecondsPerDay,
}

// fallbackChains lists, per resolution, the coarser resolutions to try when
// the upstream has nothing for it. Every chain ends at WEEK.
var fallbackChains = map[Resolution][]Resolution{
	ResolutionMinute:   {ResolutionMinute5, ResolutionMinute15, ResolutionMinute30, ResolutionHour, ResolutionHour4, ResolutionDay, ResolutionWeek},
	ResolutionMinute5:  {ResolutionMinute15, ResolutionMinute30, ResolutionHour, ResolutionHour4, ResolutionDay, ResolutionWeek},
	ResolutionMinute15: {ResolutionMinute30, ResolutionHour, ResolutionHour4, ResolutionDay, ResolutionWeek},
	ResolutionMinute30: {ResolutionHour, ResolutionHour4, ResolutionDay, ResolutionWeek},
	ResolutionHour:     {ResolutionHour4, ResolutionDay, ResolutionWeek},
	ResolutionHour4:    {ResolutionDay, ResolutionWeek},
	ResolutionDay:      {ResolutionWeek},
	ResolutionWeek:     {},
}

var defaultFallbackChain = []Resolution{ResolutionDay, ResolutionWeek}

// AllResolutions returns the known resolutions from finest to coarsest
func AllResolutions() []Resolution {
	return []Resolution{
		ResolutionMinute, ResolutionMinute5, ResolutionMinute15, ResolutionMinute30,
		ResolutionHour, ResolutionHour4, ResolutionDay, ResolutionWeek,
	}
}

// ParseResolution normalizes a caller supplied resolution name. Unknown names
// are kept as given so the upstream can judge them.
func ParseResolution(s string, def Resolution) Resolution {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if r := Resolution(strings.ToUpper(s)); r.Known() {
		return r
	}
	return Resolution(s)
}

// Known reports whether r is one of the enumerated resolutions
func (r Resolution) Known() bool {
	_, ok := barSeconds[r]
	return ok
}

// BarSeconds returns the bar duration in seconds, or 0 for unknown resolutions
func (r Resolution) BarSeconds() int64 {
	return barSeconds[r]
}

// IsIntraday reports whether bars are shorter than one day
func (r Resolution) IsIntraday() bool {
	s := r.BarSeconds()
	return s > 0 && s < SecondsPerDay
}

// FallbackChain returns the ordered coarser resolutions to try after r
func (r Resolution) FallbackChain() []Resolution {
	chain, ok := fallbackChains[r]
	if !ok {
		chain = defaultFallbackChain
	}
	out := make([]Resolution, len(chain))
	copy(out, chain)
	return out
}

func (r Resolution) String() string {
	return string(r)
}
