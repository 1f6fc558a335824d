// Package observability builds the service logger and exposes the
// authorization metrics in Prometheus format.
package observability
