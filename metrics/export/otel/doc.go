// Package otel publishes keygate metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers an Int64ObservableCounter per keygate counter and
// an Int64ObservableGauge per latency bucket. A single callback reads
// [keygate.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider (callers supply the Meter).
//   - Mutate engine state.
package otel
