// Package prometheus exposes authclient counters as a prometheus.Collector.
//
// Counter names are prefixed authclient_ and suffixed _total; gateway latency
// is the authclient_request_duration_seconds histogram. Callers register the
// Collector on their own registry, or use [Handler] for a private one.
package prometheus
