package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Discovery constants.
const (
	// Domain is the mDNS domain.
	Domain = "local."

	// MulticastAddr is the IPv4 mDNS group and port.
	MulticastAddr = "224.0.0.251:5353"

	// ServiceTypeLAN is the DNS-SD service LAN-capable devices advertise.
	ServiceTypeLAN = "_http._tcp"

	// TXTKeyDSN carries the device serial number in TXT records.
	TXTKeyDSN = "dsn"
)

// Resolution errors.
var (
	ErrNoAnswer    = errors.New("no mDNS answer")
	ErrInvalidHost = errors.New("invalid host name")
)

// Resolver resolves a device host name such as "AC000W000000001.local"
// to its current LAN address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (net.IP, error)
}

// HostForDSN returns the mDNS host name a device with the given DSN
// answers to.
func HostForDSN(dsn string) string {
	return dsn + ".local"
}

// DSNFromHost returns the DSN part of a host name built by HostForDSN.
func DSNFromHost(host string) string {
	host = strings.TrimSuffix(host, ".")
	return strings.TrimSuffix(host, ".local")
}

func fqdn(host string) string {
	if strings.HasSuffix(host, ".") {
		return host
	}
	return host + "."
}

// Chain tries each resolver in order and returns the first answer.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, host string) (net.IP, error) {
	var errs []error
	for _, r := range c {
		ip, err := r.Resolve(ctx, host)
		if err == nil {
			return ip, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAnswer, host)
	}
	return nil, errors.Join(errs...)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, host string) (net.IP, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, host string) (net.IP, error) {
	return f(ctx, host)
}
