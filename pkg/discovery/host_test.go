package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResponder answers A queries for the hosts it knows on a loopback
// socket.
func fakeResponder(t *testing.T, hosts map[string]net.IP) string {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			var q dns.Msg
			if q.Unpack(buf[:n]) != nil || len(q.Question) != 1 {
				continue
			}
			name := q.Question[0].Name
			ip, ok := hosts[name]
			if !ok {
				continue
			}
			resp := new(dns.Msg)
			resp.SetReply(&q)
			resp.Authoritative = true
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120},
				A:   ip,
			})
			out, err := resp.Pack()
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(out, from)
		}
	}()
	return conn.LocalAddr().String()
}

func TestHostResolverAnswers(t *testing.T) {
	addr := fakeResponder(t, map[string]net.IP{
		"AC000W000000001.local.": net.IPv4(192, 168, 1, 44),
	})
	r := NewHostResolver(HostResolverConfig{Addr: addr, Timeout: time.Second})

	ip, err := r.Resolve(context.Background(), HostForDSN("AC000W000000001"))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.44", ip.String())
}

func TestHostResolverNoAnswer(t *testing.T) {
	addr := fakeResponder(t, nil)
	r := NewHostResolver(HostResolverConfig{Addr: addr, Timeout: 100 * time.Millisecond})

	_, err := r.Resolve(context.Background(), "missing.local")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestHostResolverCancel(t *testing.T) {
	addr := fakeResponder(t, nil)
	r := NewHostResolver(HostResolverConfig{Addr: addr, Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Resolve(ctx, "missing.local")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHostResolverEmptyHost(t *testing.T) {
	r := NewHostResolver(HostResolverConfig{})
	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidHost)
}

func TestAnswerForUsesAdditionalSection(t *testing.T) {
	m := new(dns.Msg)
	m.Extra = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: "DEV.local.", Rrtype: dns.TypeA, Class: dns.ClassINET},
		A:   net.IPv4(10, 0, 0, 9),
	}}

	assert.Equal(t, "10.0.0.9", answerFor(m, "dev.local.").String())
	assert.Nil(t, answerFor(m, "other.local."))
}
