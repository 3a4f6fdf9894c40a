// Package command defines the commands the app hands to a device over a
// LAN session and the queue that delivers them.
//
// A device never accepts inbound requests for commands. Instead the app
// announces pending work with a local_reg notify and the device polls
// /local_lan/commands.json, receiving one command per poll. Depending on
// its kind a command is complete as soon as it is delivered, when the
// device posts a follow-up request carrying its cmd_id, or when the device
// acknowledges the datapoint it created.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
)

// Command defaults.
const (
	// DefaultTimeout bounds the wait for a command's follow-up request.
	DefaultTimeout = 5 * time.Second

	// DefaultAckTimeout bounds the wait for a datapoint ack.
	DefaultAckTimeout = 10 * time.Second
)

// Callback URIs the device posts follow-up requests to.
const (
	URIPropertyDatapoint     = "/local_lan/property/datapoint.json"
	URINodePropertyDatapoint = "/local_lan/node/property/datapoint.json"
	URILocalLAN              = "/local_lan"
	URIWifiScan              = "/local_lan/wifi_scan.json"
)

// Fixed command ids used by firmware for session control.
const (
	deleteSessionID = 0
	startScanID     = 1
)

// Kind identifies a command variant.
type Kind uint8

const (
	// KindRequest is a plain cmds entry answered by a follow-up request.
	KindRequest Kind = iota
	// KindCreateDatapoint pushes a property value to the device.
	KindCreateDatapoint
	// KindDeleteSession tells the device to drop the LAN session.
	KindDeleteSession
	// KindStartScan starts a Wi-Fi scan on a setup device.
	KindStartScan
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindCreateDatapoint:
		return "CREATE_DATAPOINT"
	case KindDeleteSession:
		return "DELETE_SESSION"
	case KindStartScan:
		return "START_SCAN"
	default:
		return "UNKNOWN"
	}
}

var nextID atomic.Uint32

// NextID returns a process-wide unique command id.
func NextID() uint32 {
	return nextID.Add(1) - 1
}

// Command is one unit of work for a device.
//
// Resolution is one-shot: the first SetResponse or SetError wins, later
// calls report false and change nothing.
type Command struct {
	kind Kind

	// ID is the cmd_id the device echoes back in its follow-up request.
	ID       uint32
	Method   string
	Resource string
	Data     string
	URI      string

	// DSN of the device or node the command targets.
	DSN string

	// Timeout bounds the wait for resolution after submission.
	Timeout time.Duration

	// AckTimeout bounds the wait for an ack once the command is delivered.
	AckTimeout time.Duration

	datapoint *Datapoint

	// delivered is guarded by the owning Queue's mutex.
	delivered bool

	once     sync.Once
	done     chan struct{}
	response []byte
	err      error
}

func newCommand(kind Kind, id uint32, method, resource, data, uri string) *Command {
	return &Command{
		kind:     kind,
		ID:       id,
		Method:   method,
		Resource: resource,
		Data:     data,
		URI:      uri,
		Timeout:  DefaultTimeout,
		done:     make(chan struct{}),
	}
}

// NewRequest returns a plain command. data is sent as a string and may
// be empty.
func NewRequest(method, resource, data, uri string) *Command {
	return newCommand(KindRequest, NextID(), method, resource, data, uri)
}

// NewGetProperty asks the device to post the current value of a property.
func NewGetProperty(name string) *Command {
	return NewRequest("GET", "property.json?name="+name, "", URIPropertyDatapoint)
}

// NewGetNodeProperty asks a gateway to post the value of a node property.
func NewGetNodeProperty(dsn, name string) *Command {
	data, _ := json.Marshal(struct {
		DSN string `json:"dsn"`
	}{dsn})
	c := NewRequest("GET", "node_property.json?name="+name, string(data), URINodePropertyDatapoint)
	c.DSN = dsn
	return c
}

// NewDeleteSession asks the device to end the LAN session.
func NewDeleteSession() *Command {
	return newCommand(KindDeleteSession, deleteSessionID, "DELETE", "local_reg.json", "delete_session", URILocalLAN)
}

// NewStartScan asks a setup device to scan for access points.
func NewStartScan() *Command {
	return newCommand(KindStartScan, startScanID, "POST", "wifi_scan.json", "", URIWifiScan)
}

// Kind returns the command variant.
func (c *Command) Kind() Kind { return c.kind }

// ExpectsFollowUp reports whether the device answers the command with a
// separate request carrying its cmd_id.
func (c *Command) ExpectsFollowUp() bool {
	return c.kind == KindRequest
}

// NeedsAck reports whether the command completes on a datapoint ack.
func (c *Command) NeedsAck() bool {
	return c.kind == KindCreateDatapoint && c.datapoint.AckEnabled
}

// Datapoint returns the datapoint of a create-datapoint command.
func (c *Command) Datapoint() *Datapoint { return c.datapoint }

// Deadline returns how long a blocking caller should wait for resolution.
func (c *Command) Deadline() time.Duration {
	if c.NeedsAck() {
		return c.Timeout + c.AckTimeout
	}
	return c.Timeout
}

type wireCmd struct {
	CmdID    uint32 `json:"cmd_id"`
	Method   string `json:"method"`
	Resource string `json:"resource"`
	Data     string `json:"data"`
	URI      string `json:"uri"`
}

type wireCmds struct {
	Cmds []cmdEntry `json:"cmds"`
}

type cmdEntry struct {
	Cmd wireCmd `json:"cmd"`
}

// Payload returns the JSON the device receives for this command.
func (c *Command) Payload() ([]byte, error) {
	if c.kind == KindCreateDatapoint {
		return c.datapoint.payload()
	}
	return json.Marshal(wireCmds{Cmds: []cmdEntry{{
		Cmd: wireCmd{c.ID, c.Method, c.Resource, c.Data, c.URI},
	}}})
}

// SetResponse resolves the command with the data of the device's answer.
func (c *Command) SetResponse(data []byte) bool {
	return c.resolve(data, nil)
}

// SetError resolves the command with err.
func (c *Command) SetError(err error) bool {
	return c.resolve(nil, err)
}

func (c *Command) resolve(data []byte, err error) bool {
	won := false
	c.once.Do(func() {
		if data == nil && err == nil {
			data = []byte{}
		}
		c.response = data
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

// Done is closed once the command resolves.
func (c *Command) Done() <-chan struct{} { return c.done }

// Resolved reports whether the command has a result.
func (c *Command) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Result returns the response and error. Both are nil until resolution.
func (c *Command) Result() ([]byte, error) {
	if !c.Resolved() {
		return nil, nil
	}
	return c.response, c.err
}

// Wait blocks until the command resolves or ctx is done. A context
// deadline resolves the command with a timeout error.
func (c *Command) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		kind := lanerr.ErrSessionStopped
		if ctx.Err() == context.DeadlineExceeded {
			kind = lanerr.ErrTimeout
		}
		c.SetError(lanerr.Wrap(kind, fmt.Sprintf("waiting for %s", c), ctx.Err()))
	}
	return c.response, c.err
}

func (c *Command) String() string {
	if c.kind == KindCreateDatapoint {
		return fmt.Sprintf("CreateDatapoint[%s=%v]", c.datapoint.Name, c.datapoint.Value)
	}
	return fmt.Sprintf("LanCmd[%d]=%s", c.ID, c.Resource)
}
