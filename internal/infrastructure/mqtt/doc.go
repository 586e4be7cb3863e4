// Package mqtt is the bridge's connection to an MQTT broker, built on
// paho.mqtt.golang.
//
// A Client reconnects with the configured backoff and renews its
// subscriptions each time. It also owns the retained {prefix}/status topic:
// "online" while connected, "offline" with reason "shutdown" after Close,
// and "offline" with reason "connection_lost" published by the broker as
// the last will.
//
// Topic names are built with Topics; the accessory is mapped onto them by
// the mqttbridge package. Enable mqtt.broker.tls for any broker that is not
// on the same host.
package mqtt
