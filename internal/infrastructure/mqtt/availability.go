package mqtt

import (
	"encoding/json"
	"time"
)

// Values of the retained {prefix}/status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Why the bridge went offline.
const (
	ReasonShutdown = "shutdown"
	ReasonLost     = "connection_lost"
)

// StatusMessage is the payload of {prefix}/status.
type StatusMessage struct {
	Status   string    `json:"status"`
	ClientID string    `json:"client_id"`
	Reason   string    `json:"reason,omitempty"`
	Since    time.Time `json:"since"`
}

func availability(status, clientID, reason string) []byte {
	b, _ := json.Marshal(StatusMessage{ //nolint:errcheck // fixed struct of strings and a time
		Status:   status,
		ClientID: clientID,
		Reason:   reason,
		Since:    time.Now().UTC().Truncate(time.Second),
	})
	return b
}

// announce publishes the retained availability of this client. It does not
// wait for the broker when called from paho's connect handler.
func (c *Client) announce(status, reason string, wait bool) {
	tok := c.paho.Publish(c.topics.Status(), c.qos, true, availability(status, c.cfg.Broker.ClientID, reason))
	if wait {
		tok.WaitTimeout(operationTimeout)
	}
}
