// Package throttle provides a client-side request admission throttle.
//
// # Overview
//
// A throttle bounds the rate at which a class of resources issues outbound
// requests to N requests per rolling window W. When the limit is reached the
// caller is blocked (polling every retry delay) rather than rejected:
//
//	reg := throttle.NewRegistry()
//	widgets, _ := reg.Define("widgets")
//	err := widgets.Configure(throttle.Options{
//	    throttle.OptionWindowDuration: 10 * time.Second,
//	    throttle.OptionRequestLimit:   45,
//	    throttle.OptionRetryDelay:     15 * time.Second,
//	})
//
//	// Blocks until a slot is free or ctx is cancelled.
//	if err := widgets.Admit(ctx); err != nil {
//	    return err
//	}
//
// # Sliding Window
//
// Each limiter keeps one timestamp per admitted request. On every admission
// attempt, timestamps strictly older than now-W are dropped; a timestamp
// exactly on the boundary still counts. Trimming is lazy and never runs on a
// timer.
//
// # Classes and Inheritance
//
// Classes are defined in a Registry. A class defined with Extends(parent)
// takes a reference to the parent's limiter at definition time, so both draw
// down the same window. Calling Configure on the child gives it a fresh,
// isolated window from then on.
//
// # Interception
//
// Intercept and Attach wrap a connection-acquisition entry point so that
// every acquisition through a resource root is admitted first. Classes that
// are not resource roots pass through; their acquisition is expected to
// cascade to the root. A limiter admits a call chain at most once, so roots
// sharing a window count it once and roots with separate windows each
// admit it.
//
// # Thread Safety
//
// Trim, size check and append run under a single mutex per limiter. There is
// no fairness among blocked callers: whichever waiter re-enters the critical
// section first after waking takes a freed slot.
package throttle
