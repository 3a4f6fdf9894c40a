// Package interactive provides the lanmode-agent console.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/yuvaraj-ayla/lanmode/pkg/command"
	"github.com/yuvaraj-ayla/lanmode/pkg/dispatch"
	"github.com/yuvaraj-ayla/lanmode/pkg/session"
)

// Console handles interactive mode for lanmode-agent.
type Console struct {
	manager    *session.Manager
	dispatcher *dispatch.Dispatcher
	rl         *readline.Instance
	out        io.Writer
}

// New creates a console reading from the terminal.
func New(manager *session.Manager, dispatcher *dispatch.Dispatcher) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lan> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{
		manager:    manager,
		dispatcher: dispatcher,
		rl:         rl,
		out:        rl.Stdout(),
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if !c.Exec(ctx, line) {
			cancel()
			return
		}
	}
}

// Exec runs one console line. It returns false when the console should
// exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "devices", "list", "ls":
		c.cmdDevices()
	case "status":
		c.cmdStatus(args)
	case "get":
		c.cmdGet(ctx, args)
	case "set":
		c.cmdSet(ctx, args)
	case "scan":
		c.cmdScan(ctx, args)
	case "delete":
		c.cmdDelete(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
LAN Agent Commands:
  devices                         - List devices and session states
  status <dsn>                    - Show session details
  get <dsn> <property>...         - Read properties over LAN
  set <dsn> <property> <value>    - Create a datapoint over LAN
  scan <dsn>                      - Start a Wi-Fi scan on a setup device
  delete <dsn>                    - End the LAN session
  help                            - Show this help
  quit                            - Exit the agent`)
}

func (c *Console) controller(args []string, usage string) (*session.Controller, bool) {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "Usage: %s\n", usage)
		return nil, false
	}
	ctl, ok := c.manager.Controller(args[0])
	if !ok {
		fmt.Fprintf(c.out, "No device %s\n", args[0])
		return nil, false
	}
	return ctl, true
}

func (c *Console) cmdDevices() {
	ctls := c.manager.Controllers()
	if len(ctls) == 0 {
		fmt.Fprintln(c.out, "No devices configured")
		return
	}
	sort.Slice(ctls, func(i, j int) bool { return ctls[i].DSN() < ctls[j].DSN() })

	fmt.Fprintf(c.out, "\nDevices (%d):\n", len(ctls))
	for _, ctl := range ctls {
		d := ctl.Device()
		kind := "device"
		if d.IsSetupDevice() {
			kind = "setup"
		}
		fmt.Fprintf(c.out, "  %-20s %-15s %-8s %s\n", d.DSN(), d.LanIP(), kind, ctl.State())
	}
}

func (c *Console) cmdStatus(args []string) {
	ctl, ok := c.controller(args, "status <dsn>")
	if !ok {
		return
	}
	stats := ctl.KeepAliveStats()
	fmt.Fprintf(c.out, "DSN:           %s\n", ctl.DSN())
	fmt.Fprintf(c.out, "LAN IP:        %s\n", ctl.Device().LanIP())
	fmt.Fprintf(c.out, "State:         %s\n", ctl.State())
	if id := ctl.SessionID(); id != "" {
		fmt.Fprintf(c.out, "Session:       %s\n", id)
	}
	fmt.Fprintf(c.out, "Rediscovering: %v\n", ctl.Rediscovering())
	fmt.Fprintf(c.out, "Queue:         %d pending, %d awaiting ack\n", ctl.Queue().Depth(), ctl.Queue().AwaitingAck())
	fmt.Fprintf(c.out, "Keep-alive:    %d beats, %d failures\n", stats.Beats, stats.Failures)
	if !stats.LastSuccess.IsZero() {
		fmt.Fprintf(c.out, "Last success:  %s\n", stats.LastSuccess.Format(time.RFC3339))
	}
	if err := ctl.LastError(); err != nil {
		fmt.Fprintf(c.out, "Last error:    %v\n", err)
	}
	for _, p := range ctl.Device().Properties() {
		fmt.Fprintf(c.out, "  %-20s %v\n", p.Name, p.Value)
	}
}

func (c *Console) cmdGet(ctx context.Context, args []string) {
	ctl, ok := c.controller(args, "get <dsn> <property>...")
	if !ok {
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: get <dsn> <property>...")
		return
	}
	props, err := c.dispatcher.FetchProperties(ctx, ctl, "", args[1:]...)
	if err != nil {
		fmt.Fprintf(c.out, "Get failed: %v\n", err)
		return
	}
	for _, name := range args[1:] {
		if v, ok := props.Values[name]; ok {
			fmt.Fprintf(c.out, "  %-20s %v\n", name, v.Value)
			continue
		}
		fmt.Fprintf(c.out, "  %-20s error: %v\n", name, props.Errors[name])
	}
}

func (c *Console) cmdSet(ctx context.Context, args []string) {
	ctl, ok := c.controller(args, "set <dsn> <property> <value>")
	if !ok {
		return
	}
	if len(args) != 3 {
		fmt.Fprintln(c.out, "Usage: set <dsn> <property> <value>")
		return
	}
	p, ok := ctl.Device().Property(args[1])
	if !ok {
		fmt.Fprintf(c.out, "No property %s on %s\n", args[1], ctl.DSN())
		return
	}
	value, err := ParseValue(p.BaseType, args[2])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid value: %v\n", err)
		return
	}
	err = c.dispatcher.CreateDatapoint(ctx, ctl, command.Datapoint{
		Name:       p.Name,
		Value:      value,
		BaseType:   p.BaseType,
		DSN:        ctl.DSN(),
		AckEnabled: p.AckEnabled,
	}, 0)
	if err != nil {
		fmt.Fprintf(c.out, "Set failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s = %v\n", p.Name, value)
}

func (c *Console) cmdScan(ctx context.Context, args []string) {
	ctl, ok := c.controller(args, "scan <dsn>")
	if !ok {
		return
	}
	cmds, err := c.dispatcher.Dispatch(ctx, ctl, command.NewStartScan())
	if err != nil {
		fmt.Fprintf(c.out, "Scan failed: %v\n", err)
		return
	}
	if _, err := cmds[0].Result(); err != nil {
		fmt.Fprintf(c.out, "Scan failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Scan started")
}

func (c *Console) cmdDelete(ctx context.Context, args []string) {
	ctl, ok := c.controller(args, "delete <dsn>")
	if !ok {
		return
	}
	if err := c.dispatcher.DeleteSession(ctx, ctl); err != nil {
		fmt.Fprintf(c.out, "Delete failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Session with %s ended\n", ctl.DSN())
}

// ParseValue converts console input to a datapoint value of baseType.
func ParseValue(baseType, s string) (any, error) {
	switch baseType {
	case "boolean":
		switch strings.ToLower(s) {
		case "1", "true", "on":
			return 1, nil
		case "0", "false", "off":
			return 0, nil
		}
		return nil, fmt.Errorf("not a boolean: %s", s)
	case "integer":
		return strconv.ParseInt(s, 10, 64)
	case "decimal", "float":
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}
