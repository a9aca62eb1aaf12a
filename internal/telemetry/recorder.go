package telemetry

import (
	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/influxdb"
)

// Recorder accepts engine activity for time-series storage.
//
// The tick loop calls these on its own goroutine; implementations must
// never block (the InfluxDB client batches asynchronously).
type Recorder interface {
	RecordTick(mapSlug string, durationUs float64, evaluated, skipped int)
	RecordShift(mapSlug string, previous, current uint8)
	RecordFault(mapSlug, rebindID, reason string)
}

// InfluxRecorder writes engine telemetry to InfluxDB.
type InfluxRecorder struct {
	client *influxdb.Client
}

// NewInfluxRecorder wraps a connected InfluxDB client.
func NewInfluxRecorder(client *influxdb.Client) *InfluxRecorder {
	return &InfluxRecorder{client: client}
}

// RecordTick writes one tick's timing and evaluation counts.
func (r *InfluxRecorder) RecordTick(mapSlug string, durationUs float64, evaluated, skipped int) {
	r.client.WriteTickMetrics(mapSlug, durationUs, evaluated, skipped)
}

// RecordShift writes a shift mask transition.
func (r *InfluxRecorder) RecordShift(mapSlug string, previous, current uint8) {
	r.client.WriteShiftTransition(mapSlug, previous, current)
}

// RecordFault writes a rebind deactivation.
func (r *InfluxRecorder) RecordFault(mapSlug, rebindID, reason string) {
	r.client.WriteRebindFault(mapSlug, rebindID, reason)
}

// NopRecorder discards all telemetry. Used when InfluxDB is disabled.
type NopRecorder struct{}

// RecordTick discards the sample.
func (NopRecorder) RecordTick(string, float64, int, int) {}

// RecordShift discards the sample.
func (NopRecorder) RecordShift(string, uint8, uint8) {}

// RecordFault discards the sample.
func (NopRecorder) RecordFault(string, string, string) {}
