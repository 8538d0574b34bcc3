// Package model defines domain entities for the application.
package model

import "time"

// ClickEvent describes one successful redirect resolution.
//
// It is constructed once per redirect, handed to the analytics emitter, and
// not retained by the core afterwards. The source IP is never carried raw;
// only SourceIPHash, a truncated salted digest, leaves the request handler.
type ClickEvent struct {
	ID        string `json:"id"` // ULID (time-sortable)
	LinkID    string `json:"link_id"`
	ShortCode string `json:"short_code"`

	// Request metadata
	Referrer  string `json:"referrer,omitempty"`   // sanitized, truncated 500 chars
	UserAgent string `json:"user_agent,omitempty"` // truncated 500 chars

	// Privacy-safe visitor identification
	SourceIPHash string `json:"source_ip_hash"` // SHA256(IP + daily_salt)[0:16]

	ClickedAt time.Time `json:"clicked_at"`
}
