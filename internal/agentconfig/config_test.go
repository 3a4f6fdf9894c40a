package agentconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
listen_port: 10300
advertise_ip: 192.168.1.10
keep_alive: 30s
mdns_interval: 2s
mdns_attempts: 4
resolver: browse
browse_service: _http._tcp
key_exchange_rate: 0
protocol_log: /tmp/agent.llog
metrics_addr: 127.0.0.1:9102
key_store: /tmp/keys.json
devices:
  - dsn: AC000W000000001
    lan_ip: 192.168.1.50
    lanip_key_id: 4321
    lanip_key: secret
    keep_alive: 30
    properties:
      - {name: Blue_LED, base_type: boolean, ack_enabled: false}
      - {name: Green_LED, base_type: boolean, ack_enabled: true}
  - dsn: AC000W000000002
    lan_ip: 192.168.1.51
    port: 8080
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, ":10300", c.ListenAddress())
	assert.Equal(t, "192.168.1.10", c.AdvertiseIP)
	assert.Equal(t, 30*time.Second, c.KeepAlive)
	assert.Equal(t, ResolverBrowse, c.Resolver)
	assert.Zero(t, c.KeyExchangeRate)
	assert.Equal(t, 2*time.Second, c.Rediscovery().Interval)
	assert.Equal(t, 4, c.Rediscovery().MaxAttempts)
	require.Len(t, c.Devices, 2)

	d := c.Devices[0]
	cfg := d.LanConfig()
	require.NotNil(t, cfg)
	assert.True(t, cfg.HasKey())
	assert.Equal(t, 4321, *cfg.KeyID)
	assert.Equal(t, 10*time.Second, cfg.KeepAliveInterval())

	rd := d.RegistryDevice()
	assert.Equal(t, "AC000W000000001", rd.DSN())
	assert.Equal(t, "192.168.1.50", rd.LanIP())
	p, ok := rd.Property("Green_LED")
	require.True(t, ok)
	assert.True(t, p.AckEnabled)

	assert.Nil(t, c.Devices[1].LanConfig())
	assert.Nil(t, c.Devices[1].RegistryDevice().LanConfig())
	assert.Equal(t, 8080, c.Devices[1].Port)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, ":10275", c.ListenAddress())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"resolver", "resolver: dnssd", ErrResolver},
		{"dsn", "devices: [{lan_ip: 10.0.0.1}]", ErrMissingDSN},
		{"lan ip", "devices: [{dsn: A}]", ErrMissingLanIP},
		{"duplicate", "devices: [{dsn: A, lan_ip: 10.0.0.1}, {dsn: A, lan_ip: 10.0.0.2}]", ErrDuplicateDSN},
		{"property", "devices: [{dsn: A, lan_ip: 10.0.0.1, properties: [{base_type: string}]}]", ErrPropertyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Parse([]byte("listen_port: [1"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Devices, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
