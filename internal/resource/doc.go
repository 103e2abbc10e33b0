// Package resource arbitrates background work against foreground queries.
//
// The Controller limits two resources:
//
//   - Background job slots (weighted semaphore): compaction and snapshot
//     jobs acquire a slot before running so a burst of writes cannot fan
//     out into unbounded goroutines.
//   - Snapshot IO bandwidth (token bucket): section reads and writes pass
//     through AcquireIO so saving a large store does not starve queries.
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 2,
//	    IOLimitBytesPerSec:   64 << 20,
//	})
//
//	if rc.TryAcquireBackground() {
//	    go func() {
//	        defer rc.ReleaseBackground()
//	        // compact
//	    }()
//	}
//
// All methods are safe for concurrent use and are no-ops on a nil
// *Controller, so resource limiting stays optional.
package resource
