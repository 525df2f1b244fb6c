package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/chart-proxy/pkg/models"
)

const maxSummaryLen = 180

// ValidationError means the upstream refused the request's credentials or
// permissions. The search stops at the first one.
type ValidationError struct {
	Epic       string
	Resolution models.Resolution
	StatusCode int
	Summary    string
	Trace      *models.FetchTrace
	Err        error
}

func (e *ValidationError) Error() string {
	return formatFailure("Market data request rejected", e.StatusCode, e.Epic, e.Resolution, e.Summary)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ExhaustedError means every resolution and epic candidate failed. It names
// the last attempt made.
type ExhaustedError struct {
	Epic       string
	Resolution models.Resolution
	StatusCode int
	Summary    string
	Trace      *models.FetchTrace
	Err        error
}

func (e *ExhaustedError) Error() string {
	return formatFailure("Market data request failed", e.StatusCode, e.Epic, e.Resolution, e.Summary)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func formatFailure(prefix string, status int, epic string, res models.Resolution, summary string) string {
	msg := fmt.Sprintf("%s (%d) for %s @ %s", prefix, status, epic, res)
	if summary != "" {
		msg += " - " + summary
	}
	return msg
}

// summarizeError condenses an upstream error body: the errorCode field,
// else the message field, else the compact JSON, else the raw text, capped
// at 180 characters
func summarizeError(body string) string {
	if body == "" {
		return ""
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		switch v := parsed.(type) {
		case map[string]interface{}:
			if s := fieldString(v["errorCode"]); s != "" {
				return s
			}
			if s := fieldString(v["message"]); s != "" {
				return s
			}
			return truncate(compactJSON(body), maxSummaryLen)
		case []interface{}:
			return truncate(compactJSON(body), maxSummaryLen)
		}
	}

	if len(body) > maxSummaryLen {
		return truncate(body, maxSummaryLen-3) + "..."
	}
	return body
}

func fieldString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if !s {
			return ""
		}
	case float64:
		if s == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}

func compactJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return body
	}
	return buf.String()
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
