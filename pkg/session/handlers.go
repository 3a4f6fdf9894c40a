package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/yuvaraj-ayla/lanmode/pkg/command"
	"github.com/yuvaraj-ayla/lanmode/pkg/envelope"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

var errMissingName = errors.New("missing property name")

// Node connection states recorded from gateway reports.
const (
	NodeOnline  = "Online"
	NodeOffline = "Offline"
)

// HandleCommands serves /local_lan/commands.json: the next command in
// an envelope, or an envelope around {} when nothing is queued. Every
// poll postpones the next keep-alive.
func (c *Controller) HandleCommands(req *transport.Request) transport.Response {
	codec, id := c.currentCodec()
	if codec == nil {
		return transport.Error(http.StatusPreconditionFailed, "No LAN session")
	}

	data := []byte("{}")
	var cmdID *uint32
	detail := ""
	if d := c.queue.Next(); d != nil {
		data = d.Payload
		detail = d.Command.String()
		if d.Command.ExpectsFollowUp() {
			cid := d.Command.ID
			cmdID = &cid
		}
	}

	seq := codec.NextSeq()
	body, err := codec.Encode(data)
	if err != nil {
		c.rec.Error(id, log.LayerEnvelope, req.ClientIP, http.StatusInternalServerError, "commands", err)
		return transport.Error(http.StatusInternalServerError, "Encryption failed")
	}

	if c.IsActive() && !c.Rediscovering() {
		c.keepAlive.Start(c.runContext())
	}
	c.config.Metrics.SetQueueDepth(c.DSN(), c.queue.Depth())

	c.rec.Control(id, log.DirectionIn, req.ClientIP, log.ControlEvent{Type: log.ControlPoll, Detail: detail})
	c.rec.Message(id, log.DirectionOut, log.LayerEnvelope, req.ClientIP, log.MessageEvent{
		Path:    req.Path,
		CmdID:   cmdID,
		SeqNo:   &seq,
		Size:    len(data),
		Payload: data,
	})
	return transport.JSON(c.queueStatus(), body)
}

// HandlePropertyUpdate serves property/datapoint.json and its node
// variant. The update may answer a get-property command named by the
// cmd_id query parameter, or arrive unsolicited.
func (c *Controller) HandlePropertyUpdate(req *transport.Request) transport.Response {
	cmd := c.takeCommand(req)
	p, resp, ok := c.open(req, "datapoint", cmd)
	if !ok {
		return resp
	}

	var upd command.PropertyUpdate
	if err := json.Unmarshal(p.Data, &upd); err != nil || upd.Name == "" {
		if err == nil {
			err = errMissingName
		}
		failCommand(cmd, lanerr.Wrap(lanerr.ErrPayloadParse, "property update", err))
		return transport.Error(http.StatusBadRequest, "Bad message JSON")
	}

	target := c.device
	if upd.DSN != "" {
		d, found := c.deviceByDSN(upd.DSN)
		if !found {
			failCommand(cmd, lanerr.New(lanerr.ErrNotFound, "no device with dsn "+upd.DSN))
			return transport.Error(http.StatusNotFound, "No device with dsn "+upd.DSN)
		}
		target = d
	}

	if err := target.UpdateProperty(upd.Name, upd.Value, upd.Metadata, registry.SourceLAN); err != nil {
		failCommand(cmd, lanerr.Wrap(lanerr.ErrPrecondition, "property "+upd.Name+" not found", err))
		c.debugLog("update for unknown property", "dsn", target.DSN(), "property", upd.Name)
		return transport.Empty(c.queueStatus())
	}

	if cmd != nil {
		cmd.SetResponse(p.Data)
	}
	return transport.Empty(c.queueStatus())
}

// HandleAck serves property/datapoint/ack.json and its node variant.
func (c *Controller) HandleAck(req *transport.Request) transport.Response {
	p, resp, ok := c.open(req, "ack", nil)
	if !ok {
		return resp
	}

	var ack command.Ack
	if err := json.Unmarshal(p.Data, &ack); err != nil {
		return transport.Error(http.StatusBadRequest, "Bad message JSON")
	}

	cmd := c.queue.TakeAck(ack.ID)
	if cmd == nil {
		c.notifyError(lanerr.New(lanerr.ErrPrecondition, "received ack for "+c.DSN()+" without a matching command"))
		return transport.Error(http.StatusNotFound, "No matching ID found")
	}

	dp := cmd.Datapoint()
	if dp == nil {
		cmd.SetError(lanerr.New(lanerr.ErrPrecondition, "ack for a command without a datapoint"))
		return transport.Empty(c.queueStatus())
	}
	if !ack.OK() {
		cmd.SetError(&lanerr.StatusError{Status: ack.AckStatus, Message: "Datapoint NAK"})
		return transport.Empty(c.queueStatus())
	}

	target := c.device
	if dp.DSN != "" {
		if d, found := c.deviceByDSN(dp.DSN); found {
			target = d
		}
	}
	if err := target.UpdateProperty(dp.Name, dp.Value, dp.Metadata, registry.SourceLAN); err != nil {
		c.debugLog("acked property unknown", "dsn", target.DSN(), "property", dp.Name)
	}
	data, err := json.Marshal(dp)
	if err != nil {
		cmd.SetError(lanerr.Wrap(lanerr.ErrPayloadParse, "datapoint", err))
	} else {
		cmd.SetResponse(data)
	}
	return transport.Empty(c.queueStatus())
}

// HandleStatus serves status.json, the details a setup device reports.
func (c *Controller) HandleStatus(req *transport.Request) transport.Response {
	cmd := c.takeCommand(req)
	p, resp, ok := c.open(req, "status", cmd)
	if !ok {
		return resp
	}
	c.device.SetSetupDetails(p.Data)
	if cmd != nil {
		cmd.SetResponse(p.Data)
	}
	return transport.Empty(c.queueStatus())
}

// HandleModuleRequest serves the setup routes that only answer a command:
// the Wi-Fi scan and status routes and regtoken.json.
func (c *Controller) HandleModuleRequest(req *transport.Request) transport.Response {
	cmd := c.takeCommand(req)
	p, resp, ok := c.open(req, "module", cmd)
	if !ok {
		return resp
	}
	if cmd != nil {
		cmd.SetResponse(p.Data)
	}
	return transport.Empty(c.queueStatus())
}

// HandleConnectStatus serves connect_status, sent by a setup device after
// joining an access point. It carries no data.
func (c *Controller) HandleConnectStatus(req *transport.Request) transport.Response {
	cmd := c.takeCommand(req)
	if _, err := c.decode(req.Body); err != nil {
		failCommand(cmd, err)
		c.cryptoFailure(req, "connect_status", err)
		return transport.Error(http.StatusUnauthorized, "Decryption failed")
	}
	if cmd != nil {
		cmd.SetResponse(nil)
	}
	return transport.JSON(c.queueStatus(), []byte("{}"))
}

// HandleNodeConnStatus serves node/conn_status.json, a gateway's report
// of which nodes are reachable.
func (c *Controller) HandleNodeConnStatus(req *transport.Request) transport.Response {
	cmd := c.takeCommand(req)
	p, err := c.decode(req.Body)
	if err != nil {
		failCommand(cmd, err)
		c.cryptoFailure(req, "conn_status", err)
		return transport.Error(http.StatusUnauthorized, "Decryption failed")
	}

	var report command.ConnStatusReport
	if err := json.Unmarshal(p.Data, &report); err != nil || report.Connection == nil {
		return transport.Error(http.StatusBadRequest, "Unable to parse request JSON")
	}

	for _, st := range report.Connection {
		d, found := c.deviceByDSN(st.DSN)
		if !found || !d.IsNode() {
			continue
		}
		status := NodeOffline
		if st.Status {
			status = NodeOnline
		}
		d.SetConnectionStatus(status)
		c.debugLog("node connection status", "gateway", c.DSN(), "node", st.DSN, "status", status)
	}
	return transport.Empty(http.StatusOK)
}

// open decrypts the request body. On failure it resolves cmd with the
// cause and returns the response for the device.
func (c *Controller) open(req *transport.Request, route string, cmd *command.Command) (*envelope.Payload, transport.Response, bool) {
	m, err := envelope.Parse(req.Body)
	if err != nil {
		failCommand(cmd, err)
		c.cryptoFailure(req, route, err)
		return nil, transport.Error(http.StatusUnauthorized, "Message parsing failed"), false
	}

	codec, id := c.currentCodec()
	if codec == nil {
		err := lanerr.New(lanerr.ErrCrypto, "no session keys")
		failCommand(cmd, err)
		c.cryptoFailure(req, route, err)
		return nil, transport.Error(http.StatusUnauthorized, "Decryption failed"), false
	}

	p, err := codec.Open(m)
	if err != nil {
		failCommand(cmd, err)
		c.cryptoFailure(req, route, err)
		return nil, transport.Error(http.StatusUnauthorized, "Decryption failed"), false
	}

	msg := log.MessageEvent{Method: req.Method, Path: req.Path, SeqNo: &p.SeqNo, Size: len(p.Data), Payload: p.Data}
	if cmd != nil {
		cid := cmd.ID
		msg.CmdID = &cid
	}
	c.rec.Message(id, log.DirectionIn, log.LayerEnvelope, req.ClientIP, msg)
	return p, transport.Response{}, true
}

// decode decrypts a body without distinguishing framing errors.
func (c *Controller) decode(body []byte) (*envelope.Payload, error) {
	codec, _ := c.currentCodec()
	if codec == nil {
		return nil, lanerr.New(lanerr.ErrCrypto, "no session keys")
	}
	return codec.Decode(body)
}

func (c *Controller) cryptoFailure(req *transport.Request, route string, err error) {
	c.config.Metrics.CryptoFailure(route)
	c.rec.Error(c.SessionID(), log.LayerEnvelope, req.ClientIP, http.StatusUnauthorized, route, err)
	c.debugLog("envelope rejected", "dsn", c.DSN(), "route", route, "error", err)
}

// takeCommand removes the command named by the cmd_id query parameter.
func (c *Controller) takeCommand(req *transport.Request) *command.Command {
	raw := req.Query.Get("cmd_id")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	cmd := c.queue.TakeByID(uint32(id))
	if cmd != nil {
		c.config.Metrics.SetQueueDepth(c.DSN(), c.queue.Depth())
	}
	return cmd
}

func (c *Controller) currentCodec() (*envelope.Codec, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec, c.sessionID
}

func (c *Controller) deviceByDSN(dsn string) (*registry.Device, bool) {
	if dsn == c.DSN() {
		return c.device, true
	}
	if c.config.Registry == nil {
		return nil, false
	}
	return c.config.Registry.ByDSN(dsn)
}

func failCommand(cmd *command.Command, err error) {
	if cmd != nil {
		cmd.SetError(err)
	}
}

func requestContext(req *transport.Request) context.Context {
	if req.Context != nil {
		return req.Context
	}
	return context.Background()
}
