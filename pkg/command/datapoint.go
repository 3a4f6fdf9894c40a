package command

import (
	"encoding/json"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/sessionkey"
)

// AckIDLen is the length of the token that matches an ack to its datapoint.
const AckIDLen = 8

// Datapoint is a property value pushed to a device.
type Datapoint struct {
	Name     string            `json:"name"`
	Value    any               `json:"value"`
	BaseType string            `json:"base_type"`
	Metadata map[string]string `json:"metadata,omitempty"`
	DSN      string            `json:"dsn"`
	ID       string            `json:"id,omitempty"`

	// Node selects the node_properties envelope used by gateways.
	Node bool `json:"-"`

	// AckEnabled properties confirm each datapoint with an explicit ack.
	AckEnabled bool `json:"-"`
}

type propertyEntry struct {
	Property *Datapoint `json:"property"`
}

func (dp *Datapoint) payload() ([]byte, error) {
	key := "properties"
	if dp.Node {
		key = "node_properties"
	}
	return json.Marshal(map[string][]propertyEntry{
		key: {{Property: dp}},
	})
}

// NewCreateDatapoint returns a command that sets a property value on the
// device. For ack-enabled properties a fresh ack id is assigned and the
// command completes on the device's ack, waiting at most ackTimeout
// (DefaultAckTimeout when zero) after delivery.
func NewCreateDatapoint(dp Datapoint, ackTimeout time.Duration) (*Command, error) {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	dp.ID = ""
	if dp.AckEnabled {
		id, err := sessionkey.RandomToken(AckIDLen)
		if err != nil {
			return nil, err
		}
		dp.ID = id
	}

	c := newCommand(KindCreateDatapoint, NextID(), "POST", "", "", "")
	c.DSN = dp.DSN
	c.AckTimeout = ackTimeout
	c.datapoint = &dp
	return c, nil
}

// Ack is the body a device posts to acknowledge a datapoint.
type Ack struct {
	ID         string `json:"id"`
	AckStatus  int    `json:"ack_status"`
	AckMessage *int   `json:"ack_message,omitempty"`
	DSN        string `json:"dsn,omitempty"`
}

// OK reports whether the device accepted the datapoint.
func (a Ack) OK() bool {
	return a.AckStatus == 200
}

// PropertyUpdate is the data a device posts to property/datapoint.json,
// either unsolicited or in answer to a get-property command. DSN is set
// when a gateway reports the value of one of its nodes.
type PropertyUpdate struct {
	Name      string            `json:"name"`
	Value     any               `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	DSN       string            `json:"dsn,omitempty"`
	DevTimeMs int64             `json:"dev_time_ms,omitempty"`
}

// NodeStatus is one entry of a gateway's node connection report.
type NodeStatus struct {
	DSN    string `json:"dsn"`
	Status bool   `json:"status"`
}

// ConnStatusReport is the data a gateway posts to node/conn_status.json.
type ConnStatusReport struct {
	Connection []NodeStatus `json:"connection"`
}
