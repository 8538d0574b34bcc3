package metrics

import "time"

// noop is a Recorder that discards all measurements.
type noop struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() Recorder {
	return noop{}
}

func (noop) IncRedirect(string)                    {}
func (noop) IncCacheHit()                          {}
func (noop) IncCacheMiss()                         {}
func (noop) ObserveRedirectDuration(time.Duration) {}
func (noop) IncLinkCreated()                       {}
func (noop) IncLinkUpdated()                       {}
func (noop) IncLinkDeleted()                       {}
func (noop) IncEventPublished(string)              {}
func (noop) IncEventDropped()                      {}
