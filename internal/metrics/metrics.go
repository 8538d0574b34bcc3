// Package metrics defines the recording seam for operational counters.
// Exporter wiring lives outside this service; components record through the
// Recorder interface and the binary chooses an implementation.
package metrics

import "time"

// Recorder records operational metrics.
type Recorder interface {
	IncRedirect(outcome string)
	IncCacheHit()
	IncCacheMiss()
	ObserveRedirectDuration(d time.Duration)
	IncLinkCreated()
	IncLinkUpdated()
	IncLinkDeleted()
	IncEventPublished(status string)
	IncEventDropped()
}

// Redirect outcomes recorded by the resolver path.
const (
	OutcomeRedirect    = "redirect"
	OutcomeNotFound    = "not_found"
	OutcomeGone        = "gone"
	OutcomeUnavailable = "unavailable"
)

// Publish statuses recorded by the click event emitter.
const (
	PublishSuccess = "success"
	PublishDropped = "dropped"
)
