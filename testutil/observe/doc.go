// Package observe provides spy implementations of the eventstore
// observability contracts (Logger, MetricsCollector, TracingCollector)
// that capture every call for inspection in tests.
package observe
