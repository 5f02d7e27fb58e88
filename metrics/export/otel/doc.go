// Package otel publishes authclient counters as OpenTelemetry observable
// instruments.
//
// Each counter becomes an Int64ObservableCounter; the latency histogram is
// flattened into one Int64ObservableGauge per cumulative bucket. The caller
// owns the MeterProvider.
package otel
