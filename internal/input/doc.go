// Package input delivers immutable device snapshots to the engine.
//
// The polling agent publishes raw physical device state over MQTT; the
// Bridge merges those per-device messages into whole Snapshot values and
// hands them to the tick loop through a Buffer whose swap is a single
// atomic pointer store. The engine therefore only ever sees fully-formed
// snapshots, never partial updates.
package input
