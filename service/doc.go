// Package service exposes the engine façade: lifecycle (init, start, stop,
// restart), check and handler registration, ad-hoc execution, aggregated
// status queries, and an outbound event bus that collaborators such as
// loggers, alert channels, and message buses subscribe to.
package service
