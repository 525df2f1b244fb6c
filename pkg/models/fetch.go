package models

import "time"

// Attempt outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeFallback  = "resolution_fallback"
	OutcomeNoData    = "rejected"
	OutcomeFatal     = "fatal"
	OutcomeTransport = "transport_error"
)

// Attempt records one upstream price request made while serving a fetch
type Attempt struct {
	Epic       string     `json:"epic"`
	Resolution Resolution `json:"resolution"`
	Status     int        `json:"status,omitempty"`
	Outcome    string     `json:"outcome"`
	Summary    string     `json:"summary,omitempty"`
}

// FetchTrace explains how a fetch was served. It is attached to chart
// metadata and to error details.
type FetchTrace struct {
	Attempts           []Attempt `json:"attempts"`
	ResolutionFallback bool      `json:"resolutionFallback"`
	EpicFallback       bool      `json:"epicFallback"`
	ResolvedEpic       string    `json:"resolvedEpic,omitempty"`
	MatchKind          string    `json:"matchKind,omitempty"`
	LowConfidence      bool      `json:"lowConfidence,omitempty"`
	RangeAdjustments   []string  `json:"rangeAdjustments,omitempty"`
}

// Add appends an attempt
func (t *FetchTrace) Add(a Attempt) {
	t.Attempts = append(t.Attempts, a)
}

// FetchEvent is published after every chart fetch
type FetchEvent struct {
	ID              string     `json:"id"`
	RequestedSymbol string     `json:"requested_symbol"`
	UsedEpic        string     `json:"used_epic,omitempty"`
	UsedResolution  Resolution `json:"used_resolution,omitempty"`
	Bars            int        `json:"bars"`
	Attempts        []Attempt  `json:"attempts"`
	Error           string     `json:"error,omitempty"`
	DurationMs      int64      `json:"duration_ms"`
	Timestamp       time.Time  `json:"timestamp"`
}
