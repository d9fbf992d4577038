// Package prometheus renders keygate metrics in Prometheus text exposition
// format.
//
// [NewExporter] wraps a [keygate.Engine]; mount [Exporter.Handler] at
// /metrics. Counters are named keygate_*_total and the one histogram is
// keygate_signin_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry.
//   - Mutate engine state.
package prometheus
