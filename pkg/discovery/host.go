package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultQueryTimeout bounds a single host query.
const DefaultQueryTimeout = time.Second

// qclassUnicastResponse is the top bit of the question class asking
// responders to answer by unicast (RFC 6762 section 5.4).
const qclassUnicastResponse = 1 << 15

// HostResolverConfig configures a HostResolver.
type HostResolverConfig struct {
	// Addr is where queries are sent. Default: MulticastAddr.
	Addr string

	// Timeout bounds one query. Default: DefaultQueryTimeout.
	Timeout time.Duration

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger
}

// HostResolver sends a one-shot mDNS A query from an ephemeral port and
// waits for the unicast answer.
type HostResolver struct {
	config HostResolverConfig
}

// NewHostResolver creates a host resolver.
func NewHostResolver(config HostResolverConfig) *HostResolver {
	if config.Addr == "" {
		config.Addr = MulticastAddr
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultQueryTimeout
	}
	return &HostResolver{config: config}
}

// Resolve implements Resolver.
func (r *HostResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		return nil, ErrInvalidHost
	}
	name := fqdn(host)

	dst, err := net.ResolveUDPAddr("udp4", r.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve mdns addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open mdns socket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	q := new(dns.Msg)
	q.SetQuestion(name, dns.TypeA)
	q.Id = 0
	q.RecursionDesired = false
	q.Question[0].Qclass |= qclassUnicastResponse

	packet, err := q.Pack()
	if err != nil {
		return nil, fmt.Errorf("pack mdns query: %w", err)
	}

	deadline := time.Now().Add(r.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	r.debugLog("mdns query", "host", name, "addr", dst.String())
	if _, err := conn.WriteTo(packet, dst); err != nil {
		return nil, fmt.Errorf("send mdns query: %w", err)
	}

	buf := make([]byte, 9000)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, fmt.Errorf("%w: %s", ErrNoAnswer, host)
			}
			return nil, fmt.Errorf("read mdns answer: %w", err)
		}

		var m dns.Msg
		if err := m.Unpack(buf[:n]); err != nil || !m.Response {
			continue
		}
		if ip := answerFor(&m, name); ip != nil {
			r.debugLog("mdns answer", "host", name, "ip", ip.String())
			return ip, nil
		}
	}
}

// answerFor returns the first A record for name in the answer or
// additional sections.
func answerFor(m *dns.Msg, name string) net.IP {
	for _, section := range [][]dns.RR{m.Answer, m.Extra} {
		for _, rr := range section {
			a, ok := rr.(*dns.A)
			if ok && strings.EqualFold(a.Hdr.Name, name) {
				return a.A
			}
		}
	}
	return nil
}

func (r *HostResolver) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

var _ Resolver = (*HostResolver)(nil)
