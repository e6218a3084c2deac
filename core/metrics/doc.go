// Package metrics defines the sinks that observe the dispatch loop. The
// dispatcher emits one TickSample per tick and one BuildEvent per table
// build; sinks such as the Prometheus and InfluxDB adapters in infra/metrics
// record them. Several sinks are combined with NewMultiSink, and the factory
// helpers return a MultiSink automatically when multiple sinks are configured.
// JitterWindow keeps a rolling window of release lateness for diagnostics.
package metrics
