package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// ErrAlreadyAdvertising is returned when Advertise is called twice.
var ErrAlreadyAdvertising = errors.New("already advertising")

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Service is the DNS-SD service type. Default: ServiceTypeLAN.
	Service string

	// Interface restricts the advertisement to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL is the record TTL. Zero uses the zeroconf default.
	TTL time.Duration

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger
}

// Advertiser announces a device's LAN endpoint.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Service == "" {
		config.Service = ServiceTypeLAN
	}
	return &Advertiser{config: config}
}

// Advertise registers the device under its DSN with the DSN in TXT.
func (a *Advertiser) Advertise(dsn string, port int, extra TXTRecordMap) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyAdvertising
	}

	txt := TXTRecordMap{TXTKeyDSN: dsn}
	for k, v := range extra {
		txt[k] = v
	}

	var ifaces []net.Interface
	if a.config.Interface != "" {
		iface, err := net.InterfaceByName(a.config.Interface)
		if err != nil {
			return fmt.Errorf("interface %s: %w", a.config.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(dsn, a.config.Service, Domain, port, TXTRecordsToStrings(txt), ifaces, opts...)
	if err != nil {
		return fmt.Errorf("register %s: %w", dsn, err)
	}
	a.server = server

	if a.config.Logger != nil {
		a.config.Logger.Debug("advertising", "dsn", dsn, "service", a.config.Service, "port", port)
	}
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
