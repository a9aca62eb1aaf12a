// Package influxdb provides time-series telemetry for the relay engine.
//
// The tick loop records per-tick duration and evaluation counts, shift
// mode transitions, and rebind faults. Writes are batched and
// non-blocking so telemetry can never stall the tick.
//
// The integration is optional: when disabled in config, Connect returns
// ErrDisabled and the runtime simply skips telemetry.
package influxdb
