package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/command"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
)

// PerPropertyTimeout is added to a fetch's timeout for every property
// requested.
const PerPropertyTimeout = 1500 * time.Millisecond

// Session is a Target that can be torn down.
type Session interface {
	Target
	Stop()
}

// Properties is the result of FetchProperties.
type Properties struct {
	Values map[string]command.PropertyUpdate
	Errors map[string]error
}

// FetchProperties asks the device for the current value of each named
// property. When dsn names a node of the target gateway, node property
// commands are used. Every command waits at most
// max(command.DefaultTimeout, PerPropertyTimeout*len(names)).
func (d *Dispatcher) FetchProperties(ctx context.Context, target Target, dsn string, names ...string) (*Properties, error) {
	timeout := command.DefaultTimeout
	if t := PerPropertyTimeout * time.Duration(len(names)); t > timeout {
		timeout = t
	}

	cmds := make([]*command.Command, 0, len(names))
	for _, name := range names {
		var cmd *command.Command
		if dsn != "" && target != nil && dsn != target.DSN() {
			cmd = command.NewGetNodeProperty(dsn, name)
		} else {
			cmd = command.NewGetProperty(name)
		}
		cmd.Timeout = timeout
		cmds = append(cmds, cmd)
	}

	if _, err := d.Dispatch(ctx, target, cmds...); err != nil {
		return nil, err
	}

	out := &Properties{
		Values: make(map[string]command.PropertyUpdate),
		Errors: make(map[string]error),
	}
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			out.Errors[names[i]] = err
			continue
		}
		var upd command.PropertyUpdate
		if err := json.Unmarshal(data, &upd); err != nil {
			out.Errors[names[i]] = lanerr.Wrap(lanerr.ErrPayloadParse, "property "+names[i], err)
			continue
		}
		out.Values[names[i]] = upd
	}
	return out, nil
}

// CreateDatapoint sets a property value on the device. For ack-enabled
// properties it returns once the device acknowledged the datapoint.
func (d *Dispatcher) CreateDatapoint(ctx context.Context, target Target, dp command.Datapoint, ackTimeout time.Duration) error {
	cmd, err := command.NewCreateDatapoint(dp, ackTimeout)
	if err != nil {
		return err
	}
	if _, err := d.Dispatch(ctx, target, cmd); err != nil {
		return err
	}
	_, err = cmd.Result()
	return err
}

// DeleteSession tells the device to drop the LAN session and stops the
// session whatever the outcome.
func (d *Dispatcher) DeleteSession(ctx context.Context, s Session) error {
	if s == nil {
		return ErrNoTarget
	}
	defer s.Stop()

	cmd := command.NewDeleteSession()
	if _, err := d.Dispatch(ctx, s, cmd); err != nil {
		return err
	}
	_, err := cmd.Result()
	return err
}
