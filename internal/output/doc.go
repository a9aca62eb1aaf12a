// Package output delivers committed virtual device state to the driver
// shim. The MQTT sink is the production path; the memory sink serves dev
// mode and tests.
package output
