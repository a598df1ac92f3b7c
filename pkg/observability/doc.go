/*
Package observability exports Prometheus metrics for editing sessions.

Metrics are fed from bus subscriptions and autosave result hooks, so no
editing component depends on this package.
*/
package observability
