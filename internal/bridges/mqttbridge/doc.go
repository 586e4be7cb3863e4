// Package mqttbridge exposes the accessory over MQTT.
//
// Topics, under the configured prefix:
//
//	state/{serial}/{characteristic}   retained StateMessage, published on change
//	set/{serial}/{characteristic}     write request; JSON scalar, {"value": x} or text
//	ack/{serial}/{characteristic}     AckMessage answering a write request
//	event/{identify|pairing}          EventMessage
//	health                            retained HealthMessage every interval
//
// A write request only forwards the value to the accessory; the state topic
// changes when the follow-up refresh observes the inverter's new state.
package mqttbridge
