// Package telemetry records engine activity to time-series storage.
// A no-op recorder stands in when the integration is disabled.
package telemetry
