package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "solarbridge"

// Topics builds the bridge's MQTT topic names under a common prefix:
//
//	{prefix}/status                    client online/offline, retained, LWT
//	{prefix}/health                    bridge health report, retained
//	{prefix}/state/{serial}/{id}       characteristic value, retained
//	{prefix}/set/{serial}/{id}         characteristic write request
//	{prefix}/ack/{serial}/{id}         outcome of a write request
//	{prefix}/event/{name}              one-off events (identify, pairing)
type Topics struct {
	Prefix string
}

// NewTopics returns builders for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// Status is the client's online/offline topic.
func (t Topics) Status() string { return t.Prefix + "/status" }

// Health is the bridge's periodic health topic.
func (t Topics) Health() string { return t.Prefix + "/health" }

// State is the retained value topic of one characteristic.
func (t Topics) State(serial, characteristic string) string {
	return t.Prefix + "/state/" + serial + "/" + characteristic
}

// Set is the write request topic of one characteristic.
func (t Topics) Set(serial, characteristic string) string {
	return t.Prefix + "/set/" + serial + "/" + characteristic
}

// Ack is the topic answering a write request.
func (t Topics) Ack(serial, characteristic string) string {
	return t.Prefix + "/ack/" + serial + "/" + characteristic
}

// SetWildcard matches every write request for serial.
func (t Topics) SetWildcard(serial string) string {
	return t.Prefix + "/set/" + serial + "/+"
}

// Event is the topic for a named one-off event.
func (t Topics) Event(name string) string { return t.Prefix + "/event/" + name }

// All matches every topic under the prefix.
func (t Topics) All() string { return t.Prefix + "/#" }

// ParseSet extracts serial and characteristic from a write request topic.
func (t Topics) ParseSet(topic string) (serial, characteristic string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/set/")
	if !found {
		return "", "", false
	}
	serial, characteristic, found = strings.Cut(rest, "/")
	if !found || serial == "" || characteristic == "" || strings.Contains(characteristic, "/") {
		return "", "", false
	}
	return serial, characteristic, true
}
