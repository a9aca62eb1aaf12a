// Package mqtt provides the broker client used for device transport.
//
// The relay is decoupled from hardware: a polling agent publishes physical
// device snapshots to hotasrelay/state/physical/{device}, and the relay
// publishes computed virtual write-sets to hotasrelay/output/virtual/{device}
// for a driver shim to apply.
//
// The client wraps paho.mqtt.golang with automatic reconnection, subscription
// restoration, Last Will and Testament for offline detection, and panic
// recovery around message handlers.
package mqtt
