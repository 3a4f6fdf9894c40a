package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/command"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/metrics"
)

// ErrNoTarget is returned when a batch has no session to run on.
var ErrNoTarget = errors.New("no LAN session for device")

// Command results, used as metric labels.
const (
	ResultOK      = "ok"
	ResultTimeout = "timeout"
	ResultStopped = "stopped"
	ResultError   = "error"
)

// Target is the session a batch runs on.
type Target interface {
	DSN() string
	Enqueue(ctx context.Context, cmds ...*command.Command) error
	Remove(cmds ...*command.Command)
	SetProcessingBlock(processing bool)
}

// Config configures a Dispatcher.
type Config struct {
	// Metrics receives per-command results. Nil disables them.
	Metrics *metrics.Metrics

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger
}

// Dispatcher runs blocking batches.
type Dispatcher struct {
	config Config
}

// New creates a dispatcher.
func New(config Config) *Dispatcher {
	return &Dispatcher{config: config}
}

// Dispatch submits cmds to target and waits for them in order. It returns
// cmds; each carries its own result. While the batch runs, keep-alive
// registrations of the target are suppressed.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, cmds ...*command.Command) ([]*command.Command, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	if len(cmds) == 0 {
		return cmds, nil
	}

	if err := target.Enqueue(ctx, cmds...); err != nil {
		return nil, fmt.Errorf("dispatch to %s: %w", target.DSN(), err)
	}
	target.SetProcessingBlock(true)
	defer target.SetProcessingBlock(false)

	var abort error
	for _, cmd := range cmds {
		if abort != nil {
			cmd.SetError(abort)
			target.Remove(cmd)
			d.record(cmd, 0)
			continue
		}

		start := time.Now()
		_, err := d.wait(ctx, cmd)
		if err != nil && !errors.Is(err, lanerr.ErrTimeout) && !errors.Is(err, lanerr.ErrSessionStopped) {
			d.record(cmd, time.Since(start))
			continue
		}
		if err != nil {
			target.Remove(cmd)
			abort = lanerr.Wrap(lanerr.Kind(err), "batch aborted after "+cmd.String(), err)
			d.debugLog("batch aborted", "dsn", target.DSN(), "cmd", cmd.String(), "error", err)
		}
		d.record(cmd, time.Since(start))
	}
	return cmds, nil
}

// wait blocks until cmd resolves or its deadline passes.
func (d *Dispatcher) wait(ctx context.Context, cmd *command.Command) ([]byte, error) {
	deadline := cmd.Deadline()
	if deadline <= 0 {
		deadline = command.DefaultTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	return cmd.Wait(wctx)
}

func (d *Dispatcher) record(cmd *command.Command, took time.Duration) {
	_, err := cmd.Result()
	d.config.Metrics.Command(cmd.Kind().String(), resultOf(err), took)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, lanerr.ErrTimeout):
		return ResultTimeout
	case errors.Is(err, lanerr.ErrSessionStopped):
		return ResultStopped
	default:
		return ResultError
	}
}

func (d *Dispatcher) debugLog(msg string, args ...any) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, args...)
	}
}
