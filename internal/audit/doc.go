// Package audit relays session lifecycle events to a sink on a background
// goroutine.
//
// The Dispatcher owns buffering only. Which events exist, and when they are
// emitted, is decided by the authclient Manager. Sinks must be safe for use
// from the single dispatcher goroutine.
package audit
