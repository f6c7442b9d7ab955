package report

import (
	"time"

	"mercator-hq/throttle/pkg/throttle"
)

// ClassSnapshot is the state of one class at a point in time.
type ClassSnapshot struct {
	Name           string        `json:"name"`
	Parent         string        `json:"parent,omitempty"`
	ResourceRoot   bool          `json:"resource_root"`
	Owner          string        `json:"owner,omitempty"`
	Engaged        bool          `json:"engaged"`
	WindowDuration time.Duration `json:"window_duration"`
	RequestLimit   int           `json:"request_limit"`
	RetryDelay     time.Duration `json:"retry_delay"`
	HistorySize    int           `json:"history_size"`
}

// Snapshot returns the state of every class in reg, in definition order.
func Snapshot(reg *throttle.Registry) []ClassSnapshot {
	classes := reg.Classes()
	out := make([]ClassSnapshot, 0, len(classes))

	for _, c := range classes {
		s := ClassSnapshot{
			Name:           c.Name(),
			ResourceRoot:   c.IsResourceRoot(),
			Owner:          c.Owner(),
			Engaged:        c.Engaged(),
			WindowDuration: c.WindowDuration(),
			RequestLimit:   c.RequestLimit(),
			RetryDelay:     c.RetryDelay(),
			HistorySize:    c.HistorySize(),
		}
		if p := c.Parent(); p != nil {
			s.Parent = p.Name()
		}
		out = append(out, s)
	}
	return out
}
