// Package cache provides an in-memory LRU over immutable blob payloads.
//
// The cache is byte-budgeted: entries are evicted in least recently used
// order once the budget is exceeded, and a value larger than the whole
// budget is never admitted.
package cache
