// Package analytics provides click event capture and publication.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/brevy/brevy/internal/model"
)

// maxHeaderLength bounds referrer and user agent strings in events.
const maxHeaderLength = 500

// ClickEventPayload is the compact event format for the Redis stream.
type ClickEventPayload struct {
	ID           string `json:"id"`
	LinkID       string `json:"lid"`
	ShortCode    string `json:"sc"`
	Referrer     string `json:"r,omitempty"`
	UserAgent    string `json:"ua,omitempty"`
	SourceIPHash string `json:"iph"`
	ClickedAt    int64  `json:"t"` // Unix milliseconds
}

// PayloadFromEvent converts a domain ClickEvent to its stream payload.
func PayloadFromEvent(event *model.ClickEvent) ClickEventPayload {
	return ClickEventPayload{
		ID:           event.ID,
		LinkID:       event.LinkID,
		ShortCode:    event.ShortCode,
		Referrer:     event.Referrer,
		UserAgent:    event.UserAgent,
		SourceIPHash: event.SourceIPHash,
		ClickedAt:    event.ClickedAt.UnixMilli(),
	}
}

// ValidatePayload rejects payloads that downstream consumers cannot use.
func ValidatePayload(p ClickEventPayload) error {
	if p.LinkID == "" {
		return errors.New("missing link id")
	}
	if p.ShortCode == "" {
		return errors.New("missing short code")
	}
	if p.ClickedAt <= 0 {
		return errors.New("missing click timestamp")
	}
	return nil
}

// HashSourceIP creates a privacy-safe source identifier.
// Uses SHA256(IP + daily_salt) truncated to 16 hex chars; the salt rotates
// at midnight UTC so hashes cannot be joined across days.
func HashSourceIP(ip string, clickedAt time.Time) string {
	dailySalt := fmt.Sprintf("brevy:%s", clickedAt.UTC().Format("2006-01-02"))

	hash := sha256.Sum256([]byte(ip + dailySalt))
	return hex.EncodeToString(hash[:])[:16]
}

// SanitizeReferrer cleans and truncates the referrer URL.
// Strips query parameters and fragments for privacy.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	sanitized := parsed.String()
	if len(sanitized) > maxHeaderLength {
		return sanitized[:maxHeaderLength]
	}
	return sanitized
}

// TruncateUserAgent truncates a user agent to the header length bound.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxHeaderLength {
		return ua[:maxHeaderLength]
	}
	return ua
}
