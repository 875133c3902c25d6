package provider

import "sync/atomic"

// Status is the health of one provider as seen by the last probe.
type Status int32

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Available reports whether a provider in this state may receive traffic.
// Degraded providers stay in rotation; unhealthy and disabled ones do not.
func (s Status) Available() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// healthCell stores a Status with atomic reads and writes. Health checks and
// route-time reads run concurrently, so the field must never be observed
// half-updated.
type healthCell struct {
	v atomic.Int32
}

func (c *healthCell) load() Status   { return Status(c.v.Load()) }
func (c *healthCell) store(s Status) { c.v.Store(int32(s)) }
