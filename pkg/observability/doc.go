/*
Package observability provides tools for monitoring the handoff engine.

It includes Prometheus metrics and structured logging exposed as lifecycle hooks, and a
Broadcaster that fans session notifications out to streaming clients.
*/
package observability
