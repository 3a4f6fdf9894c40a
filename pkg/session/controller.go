package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/command"
	"github.com/yuvaraj-ayla/lanmode/pkg/connection"
	"github.com/yuvaraj-ayla/lanmode/pkg/discovery"
	"github.com/yuvaraj-ayla/lanmode/pkg/envelope"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/metrics"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

// DefaultDevicePort is the HTTP port devices accept local_reg on.
const DefaultDevicePort = 80

// Controller errors.
var (
	ErrClosed      = errors.New("session controller closed")
	ErrNoRegistrar = errors.New("no registrar configured")
	ErrNoEndpoint  = errors.New("local endpoint unknown")
	ErrNoLanIP     = errors.New("device has no LAN address")
	ErrLanDisabled = errors.New("LAN mode disabled for device")
)

// Registrar sends local registration packets to devices.
type Registrar interface {
	Register(ctx context.Context, addr, dsn string, reg transport.LocalReg, newSession bool) error
}

// Config configures a Controller.
type Config struct {
	// Registry resolves node DSNs in property updates and acks. Nil limits
	// updates to the controller's own device.
	Registry *registry.Registry

	// Provider supplies the LAN key when the device has none cached.
	Provider lanconfig.Provider

	// Registrar sends local registration. Required for Start.
	Registrar Registrar

	// Resolver finds the device again after network failures. Nil
	// disables rediscovery.
	Resolver discovery.Resolver

	// Endpoint returns the address and port of the local LAN server.
	Endpoint func() (ip string, port int)

	// DevicePort is the port local_reg is sent to. Default: 80.
	DevicePort int

	// KeepAliveInterval overrides the interval derived from the cloud
	// keep_alive value when non-zero.
	KeepAliveInterval time.Duration

	// Rediscovery configures the mDNS loop.
	Rediscovery connection.Config

	// OfflineCapable enables rediscovery after registration failures.
	OfflineCapable bool

	// Metrics receives session metrics. Nil disables them.
	Metrics *metrics.Metrics

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLog receives protocol events. Nil disables capture.
	ProtocolLog log.Logger
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		DevicePort:  DefaultDevicePort,
		Rediscovery: connection.DefaultConfig(),
	}
}

// Controller runs the LAN session with one device.
type Controller struct {
	config      Config
	device      *registry.Device
	queue       *command.Queue
	keepAlive   *transport.KeepAlive
	rediscovery *connection.Rediscovery
	rec         log.Recorder

	mu              sync.Mutex
	state           State
	codec           *envelope.Codec
	sessionID       string
	lastError       error
	processingBlock bool
	started         bool
	closed          bool
	ctx             context.Context
	cancel          context.CancelFunc
	onStateChange   func(active bool, err error)
	onError         func(err error)
}

// NewController creates a controller for device. The session starts
// INACTIVE and nothing is sent until Start.
func NewController(device *registry.Device, config Config) *Controller {
	if config.DevicePort == 0 {
		config.DevicePort = DefaultDevicePort
	}

	c := &Controller{
		config: config,
		device: device,
		state:  StateInactive,
		ctx:    context.Background(),
		rec: log.Recorder{
			Logger: config.ProtocolLog,
			Role:   log.RoleApp,
			DSN:    device.DSN(),
		},
	}
	c.queue = command.NewQueue(command.QueueConfig{
		Logger:       config.Logger,
		OnAckTimeout: c.ackTimedOut,
	})
	c.keepAlive = transport.NewKeepAlive(transport.KeepAliveConfig{
		Interval: c.keepAliveInterval(),
	}, c.beat)

	if config.Resolver != nil {
		c.rediscovery = connection.New(config.Resolver, config.Rediscovery)
		c.rediscovery.OnFound(c.rediscovered)
		c.rediscovery.OnFailed(c.rediscoveryFailed)
		c.rediscovery.OnStateChange(func(oldState, newState connection.State) {
			c.rec.State(c.SessionID(), log.StateEntityRediscovery, oldState.String(), newState.String(), "")
		})
		c.rediscovery.OnAttempt(func(attempt int) {
			c.rec.Control(c.SessionID(), log.DirectionOut, discovery.HostForDSN(device.DSN()), log.ControlEvent{
				Type:   log.ControlMDNSQuery,
				Detail: "attempt " + strconv.Itoa(attempt),
			})
		})
	}
	return c
}

// Device returns the device this controller serves.
func (c *Controller) Device() *registry.Device { return c.device }

// DSN returns the device serial number.
func (c *Controller) DSN() string { return c.device.DSN() }

// Queue returns the command queue of the session.
func (c *Controller) Queue() *command.Queue { return c.queue }

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsActive reports whether the session is ACTIVE.
func (c *Controller) IsActive() bool {
	return c.State() == StateActive
}

// SessionID returns the id minted by the last successful key exchange,
// or "" before the first one.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LastError returns the cause of the last deactivation.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Rediscovering reports whether the mDNS loop is searching for the device.
func (c *Controller) Rediscovering() bool {
	return c.rediscovery != nil && c.rediscovery.Running()
}

// KeepAliveStats returns statistics of the registration timer.
func (c *Controller) KeepAliveStats() transport.KeepAliveStats {
	return c.keepAlive.Stats()
}

// OnStateChange sets the LAN state listener. It is called with true after
// every successful key exchange and with false and the cause whenever an
// ACTIVE session is lost. Stop reports false with a nil error.
func (c *Controller) OnStateChange(fn func(active bool, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// OnError sets a listener for errors that concern the device but no
// command, such as an ack nobody waits for.
func (c *Controller) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Start loads the LAN config, sends the first local registration and
// starts the keep-alive timer. Registration failures do not fail Start;
// they are handled like keep-alive failures.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	if c.config.Registrar == nil {
		c.mu.Unlock()
		return ErrNoRegistrar
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	runCtx := c.ctx
	c.mu.Unlock()

	if !c.device.IsSetupDevice() {
		if _, err := c.lanConfig(ctx); err != nil {
			c.mu.Lock()
			c.started = false
			c.cancel()
			c.ctx, c.cancel = context.Background(), nil
			c.mu.Unlock()
			return lanerr.Wrap(lanerr.ErrPrecondition, "lan config for "+c.DSN(), err)
		}
	}

	c.keepAlive.SetInterval(c.keepAliveInterval())
	_ = c.register(runCtx)
	if !c.Rediscovering() {
		c.keepAlive.Start(runCtx)
	}
	c.debugLog("lan session started", "dsn", c.DSN(), "keepalive", c.keepAlive.Interval())
	return nil
}

// Stop tears the session down: timers are cancelled, both command
// collections are cleared with lanerr.ErrSessionStopped and the session
// becomes INACTIVE. The controller can be started again.
func (c *Controller) Stop() {
	c.mu.Lock()
	old := c.setStateLocked(StateInactive)
	c.codec = nil
	c.processingBlock = false
	c.started = false
	cancel := c.cancel
	c.cancel = nil
	c.ctx = context.Background()
	c.mu.Unlock()

	c.keepAlive.Stop()
	if c.rediscovery != nil {
		c.rediscovery.Stop()
	}
	if cancel != nil {
		cancel()
	}
	n := c.queue.Clear(lanerr.New(lanerr.ErrSessionStopped, "session for "+c.DSN()+" stopped"))
	c.config.Metrics.SetQueueDepth(c.DSN(), 0)

	c.stateChanged(old, StateInactive, "stopped")
	c.notify(false, nil)
	c.debugLog("lan session stopped", "dsn", c.DSN(), "cleared", n)
}

// Close stops the session for good.
func (c *Controller) Close() {
	c.Stop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if c.rediscovery != nil {
		c.rediscovery.Close()
	}
}

// Enqueue adds commands to the session in order and announces them to the
// device with a local registration carrying notify=1.
func (c *Controller) Enqueue(ctx context.Context, cmds ...*command.Command) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.queue.Enqueue(cmds...)
	c.config.Metrics.SetQueueDepth(c.DSN(), c.queue.Depth())
	if err := c.register(ctx); err != nil {
		c.debugLog("notify registration failed", "dsn", c.DSN(), "error", err)
	}
	return nil
}

// Remove drops commands that are no longer wanted.
func (c *Controller) Remove(cmds ...*command.Command) {
	c.queue.Remove(cmds...)
	c.config.Metrics.SetQueueDepth(c.DSN(), c.queue.Depth())
}

// SetProcessingBlock marks a blocking batch in progress. While set, local
// registrations are suppressed.
func (c *Controller) SetProcessingBlock(processing bool) {
	c.mu.Lock()
	c.processingBlock = processing
	c.mu.Unlock()
}

// ProcessingBlock reports whether a blocking batch is in progress.
func (c *Controller) ProcessingBlock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processingBlock
}

// Register sends a local registration now.
func (c *Controller) Register(ctx context.Context) error {
	return c.register(ctx)
}

func (c *Controller) beat(ctx context.Context) error {
	err := c.register(ctx)
	c.config.Metrics.KeepAlive(err)
	return err
}

func (c *Controller) register(ctx context.Context) error {
	c.mu.Lock()
	if c.processingBlock {
		c.mu.Unlock()
		return nil
	}
	newSession := c.state != StateActive
	c.mu.Unlock()

	if c.device.LanDisabled() {
		return ErrLanDisabled
	}
	if c.config.Registrar == nil {
		return ErrNoRegistrar
	}

	var ip string
	var port int
	if c.config.Endpoint != nil {
		ip, port = c.config.Endpoint()
	}
	if ip == "" || port == 0 {
		err := lanerr.Wrap(lanerr.ErrPrecondition, "local registration", ErrNoEndpoint)
		c.registrationFailed(err)
		return err
	}
	lanIP := c.device.LanIP()
	if lanIP == "" {
		err := lanerr.Wrap(lanerr.ErrNotFound, "local registration", ErrNoLanIP)
		c.registrationFailed(err)
		return err
	}

	reg := transport.LocalReg{
		IP:   ip,
		Port: port,
		URI:  transport.LocalLANURI,
	}
	if c.queue.Depth() > 0 {
		reg.Notify = 1
	}
	if key := c.device.SetupKey(); key != nil {
		reg.Key = key.PublicKeyBase64()
	}

	addr := net.JoinHostPort(lanIP, strconv.Itoa(c.config.DevicePort))
	if err := c.config.Registrar.Register(ctx, addr, c.DSN(), reg, newSession); err != nil {
		c.debugLog("local registration failed", "dsn", c.DSN(), "new_session", newSession, "error", err)
		c.registrationFailed(err)
		return err
	}
	return nil
}

// registrationFailed handles a failed local registration. Network and
// timeout failures of an offline-capable session start rediscovery and
// keep the session ACTIVE; any other failure deactivates it.
func (c *Controller) registrationFailed(err error) {
	c.mu.Lock()
	rediscover := c.config.OfflineCapable && c.rediscovery != nil && c.started && shouldRediscover(err)
	wasActive := c.state == StateActive
	var cause error
	if wasActive && !rediscover {
		c.setStateLocked(StateInactive)
		c.lastError = fmt.Errorf("key exchange failure: %w", err)
		cause = c.lastError
	}
	c.mu.Unlock()

	if cause != nil {
		c.stateChanged(StateActive, StateInactive, "registration failed")
		c.notify(false, cause)
	}
	if rediscover && !c.rediscovery.Running() {
		c.keepAlive.Stop()
		c.rediscovery.SetLastKnownIP(net.ParseIP(c.device.LanIP()))
		if startErr := c.rediscovery.Start(discovery.HostForDSN(c.DSN())); startErr != nil {
			c.debugLog("rediscovery not started", "dsn", c.DSN(), "error", startErr)
		}
	}
}

// shouldRediscover reports whether a registration failure may mean the
// device moved: network or timeout errors without a device status.
func shouldRediscover(err error) bool {
	if !errors.Is(err, lanerr.ErrNetwork) && !errors.Is(err, lanerr.ErrTimeout) {
		return false
	}
	var se *lanerr.StatusError
	return !errors.As(err, &se)
}

func (c *Controller) rediscovered(ip net.IP) {
	c.device.SetLanIP(ip.String())
	c.config.Metrics.Rediscovery(nil)
	c.debugLog("device rediscovered", "dsn", c.DSN(), "ip", ip.String())

	c.mu.Lock()
	started := c.started
	ctx := c.ctx
	c.mu.Unlock()
	if started {
		c.keepAlive.Start(ctx)
	}
}

func (c *Controller) rediscoveryFailed(err error) {
	c.config.Metrics.Rediscovery(err)

	c.mu.Lock()
	wasActive := c.state == StateActive
	if wasActive {
		c.setStateLocked(StateInactive)
		c.lastError = err
	}
	c.mu.Unlock()

	c.debugLog("rediscovery failed", "dsn", c.DSN(), "error", err)
	if wasActive {
		c.stateChanged(StateActive, StateInactive, "rediscovery failed")
		c.notify(false, err)
	}
}

func (c *Controller) ackTimedOut(cmd *command.Command) {
	c.debugLog("datapoint ack timed out", "dsn", c.DSN(), "cmd", cmd.String())
	c.rec.Error(c.SessionID(), log.LayerSession, "", 0, "ack timeout "+cmd.String(), lanerr.ErrTimeout)
}

// lanConfig returns the device's LAN config, fetching it from the
// provider when the device has none.
func (c *Controller) lanConfig(ctx context.Context) (*lanconfig.Config, error) {
	if cfg := c.device.LanConfig(); cfg != nil {
		return cfg, nil
	}
	if c.config.Provider == nil {
		return nil, registry.ErrNoLanConfig
	}
	cfg, err := c.config.Provider.LanConfig(ctx, c.DSN())
	if err != nil {
		return nil, err
	}
	c.device.SetLanConfig(cfg)
	return cfg, nil
}

// refreshLanConfig fetches a new key after a mismatch. LAN mode stays
// disabled for the device until the refresh succeeds.
func (c *Controller) refreshLanConfig() {
	if c.config.Provider == nil {
		return
	}
	ctx := c.runContext()
	cfg, err := c.config.Provider.Refresh(ctx, c.DSN())
	if err != nil {
		c.debugLog("lan config refresh failed", "dsn", c.DSN(), "error", err)
		return
	}
	c.device.SetLanConfig(cfg)
	c.device.SetLanDisabled(false)
	c.keepAlive.SetInterval(c.keepAliveInterval())
	c.debugLog("lan config refreshed", "dsn", c.DSN())

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		_ = c.register(ctx)
	}
}

func (c *Controller) keepAliveInterval() time.Duration {
	if c.config.KeepAliveInterval > 0 {
		return c.config.KeepAliveInterval
	}
	return c.device.LanConfig().KeepAliveInterval()
}

func (c *Controller) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// queueStatus returns 206 while undelivered commands remain, else 200.
func (c *Controller) queueStatus() int {
	if c.queue.Depth() > 0 {
		return 206
	}
	return 200
}

// setStateLocked changes the state and returns the previous one.
func (c *Controller) setStateLocked(s State) State {
	old := c.state
	c.state = s
	return old
}

// stateChanged publishes a transition. Must be called without c.mu held.
func (c *Controller) stateChanged(old, next State, reason string) {
	if old == next {
		return
	}
	if old == StateActive {
		c.config.Metrics.SessionActive(false)
	}
	if next == StateActive {
		c.config.Metrics.SessionActive(true)
	}
	c.rec.State(c.SessionID(), log.StateEntitySession, old.String(), next.String(), reason)
	c.debugLog("lan session state", "dsn", c.DSN(), "from", old, "to", next, "reason", reason)
}

func (c *Controller) notify(active bool, err error) {
	c.mu.Lock()
	fn := c.onStateChange
	c.mu.Unlock()
	if fn != nil {
		fn(active, err)
	}
}

func (c *Controller) notifyError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (c *Controller) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}
