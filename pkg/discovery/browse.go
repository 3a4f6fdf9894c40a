package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// DefaultBrowseTimeout bounds one browse-based resolution.
const DefaultBrowseTimeout = 3 * time.Second

// BrowseFunc starts a DNS-SD browse and delivers entries until ctx ends.
// It has the shape of zeroconf.Browse and is replaced in tests.
type BrowseFunc func(ctx context.Context, service, domain string,
	entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

// BrowseResolverConfig configures a BrowseResolver.
type BrowseResolverConfig struct {
	// Service is the DNS-SD service type. Default: ServiceTypeLAN.
	Service string

	// Timeout bounds one resolution. Default: DefaultBrowseTimeout.
	Timeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	// Browse overrides the browse implementation.
	// If nil, zeroconf.Browse is used.
	Browse BrowseFunc

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger
}

// BrowseResolver resolves devices by browsing their advertised service.
type BrowseResolver struct {
	config BrowseResolverConfig
}

// NewBrowseResolver creates a browse resolver.
func NewBrowseResolver(config BrowseResolverConfig) *BrowseResolver {
	if config.Service == "" {
		config.Service = ServiceTypeLAN
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultBrowseTimeout
	}
	if config.Browse == nil {
		config.Browse = func(ctx context.Context, service, domain string,
			entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
			return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
		}
	}
	return &BrowseResolver{config: config}
}

// Resolve implements Resolver.
func (r *BrowseResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return nil, ErrInvalidHost
	}
	dsn := DSNFromHost(host)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browseErr := make(chan error, 1)

	go func() {
		browseErr <- r.config.Browse(ctx, r.config.Service, Domain, entries, removed, r.options()...)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNoAnswer, host)
			}
			if !matches(entry, dsn) {
				continue
			}
			if ip := firstAddr(entry); ip != nil {
				r.debugLog("browse answer", "dsn", dsn, "instance", entry.Instance, "ip", ip.String())
				return ip, nil
			}

		case <-removed:

		case err := <-browseErr:
			if err != nil {
				return nil, fmt.Errorf("browse %s: %w", r.config.Service, err)
			}
			browseErr = nil

		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNoAnswer, host)
		}
	}
}

func (r *BrowseResolver) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if r.config.Interface != "" {
		iface, err := net.InterfaceByName(r.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func (r *BrowseResolver) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

// matches reports whether entry belongs to the device with the given DSN.
func matches(entry *zeroconf.ServiceEntry, dsn string) bool {
	if entry == nil {
		return false
	}
	if strings.EqualFold(entry.Instance, dsn) {
		return true
	}
	if strings.EqualFold(DSNFromHost(entry.HostName), dsn) {
		return true
	}
	return StringsToTXTRecords(entry.Text)[TXTKeyDSN] == dsn
}

func firstAddr(entry *zeroconf.ServiceEntry) net.IP {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0]
	}
	if len(entry.AddrIPv6) > 0 {
		return entry.AddrIPv6[0]
	}
	return nil
}

var _ Resolver = (*BrowseResolver)(nil)
