package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTickMetrics records one engine tick's timing and activity.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Call this from the tick loop's telemetry hook, never inline with
// rebind evaluation.
//
// Parameters:
//   - mapSlug: Slug of the active rebind map
//   - durationUs: Wall time the tick took, in microseconds
//   - evaluated: Number of rebinds evaluated this tick
//   - skipped: Number of rebinds skipped by shift gating or fault state
func (c *Client) WriteTickMetrics(mapSlug string, durationUs float64, evaluated int, skipped int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"engine_tick",
		map[string]string{
			"map": mapSlug,
		},
		map[string]interface{}{
			"duration_us": durationUs,
			"evaluated":   evaluated,
			"skipped":     skipped,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteShiftTransition records a shift mode mask change.
//
// Parameters:
//   - mapSlug: Slug of the active rebind map
//   - previous: Shift mask before the transition
//   - current: Shift mask after the transition
func (c *Client) WriteShiftTransition(mapSlug string, previous uint8, current uint8) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"shift_transition",
		map[string]string{
			"map": mapSlug,
		},
		map[string]interface{}{
			"previous": int64(previous),
			"current":  int64(current),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRebindFault records a rebind being deactivated after an evaluation fault.
//
// Parameters:
//   - mapSlug: Slug of the active rebind map
//   - rebindID: ID of the faulted rebind
//   - reason: Short description of the fault
func (c *Client) WriteRebindFault(mapSlug string, rebindID string, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rebind_fault",
		map[string]string{
			"map":    mapSlug,
			"rebind": rebindID,
		},
		map[string]interface{}{
			"reason": reason,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
