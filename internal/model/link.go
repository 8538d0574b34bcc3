// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// LinkStatus represents the computed status of a link.
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusExpired  LinkStatus = "expired"
	LinkStatusDisabled LinkStatus = "disabled"
	LinkStatusDeleted  LinkStatus = "deleted"
)

// RedirectType represents the HTTP redirect status code.
type RedirectType int

const (
	RedirectPermanent RedirectType = 301
	RedirectTemporary RedirectType = 302
)

// IsValid checks if the redirect type is valid.
func (r RedirectType) IsValid() bool {
	return r == RedirectPermanent || r == RedirectTemporary
}

// Link represents a shortened URL entity.
//
// ShortCode is unique across all non-deleted links; the uniqueness arbiter
// is the database constraint, not application code. Deletion is soft: a
// deleted link keeps its row but resolves as not found.
type Link struct {
	ID           string       `json:"id"`
	ShortCode    string       `json:"short_code"`
	Destination  string       `json:"destination"`
	RedirectType RedirectType `json:"redirect_type"`
	IsCustomCode bool         `json:"is_custom_code"`
	Enabled      bool         `json:"enabled"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	DeletedAt    *time.Time   `json:"-"`
	ClickCount   int64        `json:"click_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Status computes the current status of the link.
func (l *Link) Status() LinkStatus {
	if l.DeletedAt != nil {
		return LinkStatusDeleted
	}
	if !l.Enabled {
		return LinkStatusDisabled
	}
	if l.IsExpired() {
		return LinkStatusExpired
	}
	return LinkStatusActive
}

// IsActive returns true if the link can be used for redirects.
func (l *Link) IsActive() bool {
	return l.Status() == LinkStatusActive
}

// IsExpired returns true if the link has passed its expiry time.
func (l *Link) IsExpired() bool {
	return l.ExpiresAt != nil && time.Now().After(*l.ExpiresAt)
}

// CachedLink is the ephemeral cache projection of a Link.
// It is owned by the cache layer, never persisted, and rebuildable from the
// store at any time. String fields keep it compatible with Redis hashes.
type CachedLink struct {
	LinkID       string `redis:"link_id"`
	Destination  string `redis:"destination"`
	RedirectType string `redis:"redirect_type"`
	ExpiresAt    string `redis:"expires_at"` // Unix timestamp or empty
	Enabled      string `redis:"enabled"`    // "1" or "0"
	DeletedAt    string `redis:"deleted_at"` // Unix timestamp or empty
	UpdatedAt    string `redis:"updated_at"` // Unix timestamp
}

// ToLink converts CachedLink to the Link domain model.
func (c *CachedLink) ToLink(shortCode string) *Link {
	link := &Link{
		ID:          c.LinkID,
		ShortCode:   shortCode,
		Destination: c.Destination,
		Enabled:     c.Enabled == "1",
	}

	if c.RedirectType == "301" {
		link.RedirectType = RedirectPermanent
	} else {
		link.RedirectType = RedirectTemporary
	}

	if c.ExpiresAt != "" {
		if ts, err := strconv.ParseInt(c.ExpiresAt, 10, 64); err == nil {
			t := time.Unix(ts, 0)
			link.ExpiresAt = &t
		}
	}

	if c.DeletedAt != "" {
		if ts, err := strconv.ParseInt(c.DeletedAt, 10, 64); err == nil {
			t := time.Unix(ts, 0)
			link.DeletedAt = &t
		}
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			link.UpdatedAt = time.Unix(ts, 0)
		}
	}

	return link
}

// ToCachedLink converts a Link to its cache projection.
func (l *Link) ToCachedLink() *CachedLink {
	cached := &CachedLink{
		LinkID:       l.ID,
		Destination:  l.Destination,
		RedirectType: strconv.Itoa(int(l.RedirectType)),
		Enabled:      boolToString(l.Enabled),
		UpdatedAt:    strconv.FormatInt(l.UpdatedAt.Unix(), 10),
	}

	if l.ExpiresAt != nil {
		cached.ExpiresAt = strconv.FormatInt(l.ExpiresAt.Unix(), 10)
	}

	if l.DeletedAt != nil {
		cached.DeletedAt = strconv.FormatInt(l.DeletedAt.Unix(), 10)
	}

	return cached
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
