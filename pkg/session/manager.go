package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/metrics"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

// Manager errors.
var (
	ErrAlreadyStarted = errors.New("manager already started")
	ErrNotStarted     = errors.New("manager not started")
	ErrNoController   = errors.New("no session for device")
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// ListenAddress of the LAN server. Default: ":10275".
	ListenAddress string

	// AdvertiseIP is the address sent in local registrations. Empty
	// selects the first non-loopback IPv4 address of the host.
	AdvertiseIP string

	// DisableFallback makes Start fail when ListenAddress is taken.
	DisableFallback bool

	// MaxBodySize caps request bodies. Default: 64 KiB.
	MaxBodySize int64

	// KeyExchangeRate and KeyExchangeBurst bound key exchanges per client
	// address. A negative rate disables limiting.
	KeyExchangeRate  float64
	KeyExchangeBurst int

	// Session is the template for every controller. Registry and Endpoint
	// are set by the manager; a nil Registrar selects the HTTP registrar.
	Session Config

	// RegistrationTimeout bounds one local registration. Default: 5 seconds.
	RegistrationTimeout time.Duration
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		KeyExchangeRate:  transport.DefaultKeyExchangeRate,
		KeyExchangeBurst: transport.DefaultKeyExchangeBurst,
		Session:          DefaultConfig(),
	}
}

// Manager owns the LAN server and one Controller per registered device.
// Inbound requests are routed to the controller of the device at the
// client address, or of the setup device while one is bound.
type Manager struct {
	config   ManagerConfig
	registry *registry.Registry
	router   *transport.Router
	server   *transport.Server

	mu          sync.RWMutex
	controllers map[string]*Controller
	advertiseIP string
	started     bool
}

// NewManager creates a manager for the devices in reg.
func NewManager(reg *registry.Registry, config ManagerConfig) *Manager {
	if config.KeyExchangeRate == 0 {
		config.KeyExchangeRate = transport.DefaultKeyExchangeRate
	}
	if config.KeyExchangeBurst == 0 {
		config.KeyExchangeBurst = transport.DefaultKeyExchangeBurst
	}
	if config.Session.Registrar == nil {
		config.Session.Registrar = transport.NewRegistrar(transport.RegistrarConfig{
			Timeout:     config.RegistrationTimeout,
			Logger:      config.Session.Logger,
			ProtocolLog: config.Session.ProtocolLog,
		})
	}

	m := &Manager{
		config:      config,
		registry:    reg,
		controllers: make(map[string]*Controller),
		advertiseIP: config.AdvertiseIP,
	}

	var limiter *transport.KeyExchangeLimiter
	if config.KeyExchangeRate > 0 {
		limiter = transport.NewKeyExchangeLimiter(config.KeyExchangeRate, config.KeyExchangeBurst, 0)
	}
	m.router = transport.NewRouter(transport.RouterConfig{
		MaxBodySize: config.MaxBodySize,
		Limiter:     limiter,
		OnLimited: func(string) {
			config.Session.Metrics.Handshake(VariantLAN, metrics.OutcomeRateLimited, 0)
		},
		Role:        log.RoleApp,
		Logger:      config.Session.Logger,
		ProtocolLog: config.Session.ProtocolLog,
	})
	m.routes()

	m.server = transport.NewServer(transport.ServerConfig{
		Address:         config.ListenAddress,
		Handler:         m.router,
		DisableFallback: config.DisableFallback,
		Logger:          config.Session.Logger,
	})
	return m
}

func (m *Manager) routes() {
	m.router.Handle(transport.PathKeyExchange, m.route((*Controller).HandleKeyExchange))
	m.router.Handle(transport.PathCommands, m.route((*Controller).HandleCommands))
	m.router.Handle(transport.PathDatapoint, m.route((*Controller).HandlePropertyUpdate))
	m.router.Handle(transport.PathNodeDatapoint, m.route((*Controller).HandlePropertyUpdate))
	m.router.Handle(transport.PathDatapointAck, m.route((*Controller).HandleAck))
	m.router.Handle(transport.PathNodeDatapointAck, m.route((*Controller).HandleAck))
	m.router.Handle(transport.PathNodeConnStatus, m.route((*Controller).HandleNodeConnStatus))
	m.router.Handle(transport.PathConnectStatus, m.route((*Controller).HandleConnectStatus))
	m.router.Handle(transport.PathStatus, m.route((*Controller).HandleStatus))
	for _, p := range []string{
		transport.PathWifiScan,
		transport.PathWifiScanResults,
		transport.PathWifiStatus,
		transport.PathRegToken,
		transport.PathWifiStopAP,
	} {
		m.router.Handle(p, m.route((*Controller).HandleModuleRequest))
	}
}

// route resolves the controller a request belongs to. Requests from a
// node's address go to the gateway that owns the LAN session.
func (m *Manager) route(h func(*Controller, *transport.Request) transport.Response) transport.HandlerFunc {
	return func(req *transport.Request) transport.Response {
		d, ok := m.registry.Lookup(req.ClientIP)
		if !ok {
			return transport.Error(http.StatusNotFound, "No LAN module found")
		}
		dsn := d.DSN()
		if d.IsNode() {
			dsn = d.GatewayDSN()
		}
		c, ok := m.Controller(dsn)
		if !ok {
			return transport.Error(http.StatusNotFound, "No LAN module found")
		}
		return h(c, req)
	}
}

// Handler returns the HTTP handler serving the LAN routes.
func (m *Manager) Handler() http.Handler { return m.router }

// Registry returns the device registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Add registers device and creates its controller. A non-zero devicePort
// overrides the port local registrations are sent to.
func (m *Manager) Add(device *registry.Device, devicePort int) (*Controller, error) {
	if existing, ok := m.registry.ByDSN(device.DSN()); !ok {
		if err := m.registry.Add(device); err != nil {
			return nil, err
		}
	} else if existing != device {
		return nil, registry.ErrDuplicateDevice
	}
	return m.attach(device, devicePort), nil
}

// AddSetup binds device as the setup device and creates its controller.
// All inbound requests are routed to it until it is removed.
func (m *Manager) AddSetup(device *registry.Device, devicePort int) *Controller {
	m.registry.SetSetupDevice(device)
	return m.attach(device, devicePort)
}

func (m *Manager) attach(device *registry.Device, devicePort int) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[device.DSN()]; ok {
		return c
	}

	config := m.config.Session
	config.Registry = m.registry
	config.Endpoint = m.Endpoint
	if devicePort > 0 {
		config.DevicePort = devicePort
	}
	c := NewController(device, config)
	m.controllers[device.DSN()] = c
	return c
}

// Remove closes the session of dsn and forgets the device.
func (m *Manager) Remove(dsn string) {
	m.mu.Lock()
	c, ok := m.controllers[dsn]
	delete(m.controllers, dsn)
	m.mu.Unlock()

	if ok {
		c.Close()
	}
	m.registry.Remove(dsn)
}

// Controller returns the controller of dsn.
func (m *Manager) Controller(dsn string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[dsn]
	return c, ok
}

// Controllers returns all controllers.
func (m *Manager) Controllers() []*Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c)
	}
	return out
}

// Endpoint returns the address and port sent in local registrations. The
// port is 0 while the server is not running.
func (m *Manager) Endpoint() (string, int) {
	m.mu.RLock()
	ip := m.advertiseIP
	m.mu.RUnlock()
	return ip, m.server.Port()
}

// Start starts the LAN server.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	if m.advertiseIP == "" {
		ip, err := localIPv4()
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.advertiseIP = ip
	}
	m.mu.Unlock()

	if err := m.server.Start(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	m.debugLog("lan server started", "addr", m.server.Addr(), "advertise", m.advertiseIP)
	return nil
}

// StartSession starts the session of dsn.
func (m *Manager) StartSession(ctx context.Context, dsn string) error {
	c, ok := m.Controller(dsn)
	if !ok {
		return ErrNoController
	}
	return c.Start(ctx)
}

// Stop stops every session and then the server.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.started = false
	m.mu.Unlock()

	for _, c := range m.Controllers() {
		c.Stop()
	}
	return m.server.Stop(ctx)
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Session.Logger != nil {
		m.config.Session.Logger.Debug(msg, args...)
	}
}

// localIPv4 returns the first non-loopback IPv4 address of an up interface.
func localIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", errors.New("no IPv4 address available")
}
