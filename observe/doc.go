// Package observe provides observability primitives for the health engine.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The service wires the observer into the scheduler
// and event bus.
package observe
