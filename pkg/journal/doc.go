// Package journal keeps an sqlite audit log of admissions.
//
// A Journal implements throttle.Observer, so attaching it to a registry
// records every granted admission with the time it was granted, how long
// the caller waited and how many retry sleeps that took:
//
//	j, err := journal.Open("throttle.db")
//	if err != nil {
//		return err
//	}
//	defer j.Close()
//
//	reg := throttle.NewRegistry(throttle.WithObserver(j))
//
// The journal is for inspection only. Limiters never read it back, so a
// restarted process always begins with an empty window.
//
// Each process run gets a run ID (a UUID unless set with WithRunID) so
// entries from different runs can be told apart.
package journal
