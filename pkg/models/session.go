package models

import "time"

// Session is the short-lived credential pair authorizing upstream calls
type Session struct {
	CST           string    `json:"-"`
	SecurityToken string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ValidAt reports whether the session can still be used at t
func (s *Session) ValidAt(t time.Time) bool {
	return s != nil && s.CST != "" && t.Before(s.ExpiresAt)
}
