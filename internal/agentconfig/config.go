// Package agentconfig loads the YAML configuration of lanmode-agent.
package agentconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yuvaraj-ayla/lanmode/pkg/connection"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

// Resolver names.
const (
	ResolverHost   = "host"
	ResolverBrowse = "browse"
)

// Validation errors.
var (
	ErrMissingDSN   = errors.New("device dsn is required")
	ErrDuplicateDSN = errors.New("duplicate device dsn")
	ErrMissingLanIP = errors.New("device lan_ip is required")
	ErrResolver     = errors.New("resolver must be host or browse")
	ErrPropertyName = errors.New("property name is required")
)

// Config is the agent configuration file.
type Config struct {
	ListenPort      int           `yaml:"listen_port"`
	AdvertiseIP     string        `yaml:"advertise_ip"`
	KeepAlive       time.Duration `yaml:"keep_alive"`
	MDNSInterval    time.Duration `yaml:"mdns_interval"`
	MDNSAttempts    int           `yaml:"mdns_attempts"`
	Resolver        string        `yaml:"resolver"`
	BrowseService   string        `yaml:"browse_service"`
	KeyExchangeRate float64       `yaml:"key_exchange_rate"`
	ProtocolLog     string        `yaml:"protocol_log"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	KeyStore        string        `yaml:"key_store"`
	Devices         []Device      `yaml:"devices"`
}

// Device is one statically configured device.
type Device struct {
	DSN        string     `yaml:"dsn"`
	LanIP      string     `yaml:"lan_ip"`
	Port       int        `yaml:"port"`
	KeyID      *int       `yaml:"lanip_key_id"`
	Key        string     `yaml:"lanip_key"`
	KeepAlive  int        `yaml:"keep_alive"`
	Properties []Property `yaml:"properties"`
}

// Property declares a device property.
type Property struct {
	Name       string `yaml:"name"`
	BaseType   string `yaml:"base_type"`
	AckEnabled bool   `yaml:"ack_enabled"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		ListenPort:      transport.DefaultPort,
		MDNSInterval:    connection.DefaultInterval,
		MDNSAttempts:    connection.DefaultMaxAttempts,
		Resolver:        ResolverHost,
		KeyExchangeRate: transport.DefaultKeyExchangeRate,
	}
}

// Parse decodes a configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks the device list and the resolver choice.
func (c *Config) Validate() error {
	switch c.Resolver {
	case ResolverHost, ResolverBrowse:
	default:
		return fmt.Errorf("%w, got %q", ErrResolver, c.Resolver)
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.DSN == "" {
			return fmt.Errorf("devices[%d]: %w", i, ErrMissingDSN)
		}
		if seen[d.DSN] {
			return fmt.Errorf("devices[%d]: %w %s", i, ErrDuplicateDSN, d.DSN)
		}
		seen[d.DSN] = true
		if d.LanIP == "" {
			return fmt.Errorf("%s: %w", d.DSN, ErrMissingLanIP)
		}
		for j, p := range d.Properties {
			if p.Name == "" {
				return fmt.Errorf("%s: properties[%d]: %w", d.DSN, j, ErrPropertyName)
			}
		}
	}
	return nil
}

// ListenAddress returns the address the LAN server binds.
func (c *Config) ListenAddress() string {
	return ":" + strconv.Itoa(c.ListenPort)
}

// Rediscovery returns the mDNS loop settings.
func (c *Config) Rediscovery() connection.Config {
	return connection.Config{
		Interval:    c.MDNSInterval,
		MaxAttempts: c.MDNSAttempts,
	}
}

// LanConfig returns the configured LAN key, or nil when the device has
// none and the key must come from the key store.
func (d Device) LanConfig() *lanconfig.Config {
	if d.KeyID == nil && d.Key == "" {
		return nil
	}
	return &lanconfig.Config{
		KeyID:     d.KeyID,
		Key:       d.Key,
		KeepAlive: d.KeepAlive,
	}
}

// RegistryDevice builds the registry entry for d.
func (d Device) RegistryDevice() *registry.Device {
	rd := registry.NewDevice(d.DSN, d.LanIP)
	if cfg := d.LanConfig(); cfg != nil {
		rd.SetLanConfig(cfg)
	}
	for _, p := range d.Properties {
		rd.AddProperty(p.Name, p.BaseType, p.AckEnabled)
	}
	return rd
}
