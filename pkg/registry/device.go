package registry

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/setupcrypto"
)

// Registry errors.
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrDuplicateDevice  = errors.New("device already registered")
	ErrNoLanConfig      = errors.New("device has no LAN config")
)

// Source identifies where a property value came from.
type Source uint8

const (
	SourceLAN Source = iota
	SourceCloud
	SourceLocal
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceLAN:
		return "LAN"
	case SourceCloud:
		return "CLOUD"
	case SourceLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Property is a snapshot of one device property.
type Property struct {
	Name       string            `json:"name"`
	BaseType   string            `json:"base_type"`
	AckEnabled bool              `json:"ack_enabled"`
	Value      any               `json:"value"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Source     Source            `json:"-"`
}

// Device is a device known to the app, possibly reachable over the LAN.
type Device struct {
	dsn      string
	node     bool
	gateway  string
	setupKey *setupcrypto.KeyPair

	mu           sync.RWMutex
	lanIP        string
	lanConfig    *lanconfig.Config
	properties   map[string]*Property
	connStatus   string
	setupDetails json.RawMessage
	lanDisabled  bool

	onPropertyChange func(dsn string, p Property)
}

// NewDevice creates a device with the given DSN and last known LAN IP.
func NewDevice(dsn, lanIP string) *Device {
	return &Device{
		dsn:        dsn,
		lanIP:      lanIP,
		properties: make(map[string]*Property),
	}
}

// NewNode creates a node device reachable through the gateway with the
// given DSN.
func NewNode(dsn, gatewayDSN string) *Device {
	d := NewDevice(dsn, "")
	d.node = true
	d.gateway = gatewayDSN
	return d
}

// NewSetupDevice creates a device being provisioned. Secure-setup key
// exchanges with it use key.
func NewSetupDevice(dsn, lanIP string, key *setupcrypto.KeyPair) *Device {
	d := NewDevice(dsn, lanIP)
	d.setupKey = key
	return d
}

// DSN returns the device serial number.
func (d *Device) DSN() string { return d.dsn }

// IsNode reports whether the device sits behind a gateway.
func (d *Device) IsNode() bool { return d.node }

// GatewayDSN returns the DSN of the owning gateway for nodes.
func (d *Device) GatewayDSN() string { return d.gateway }

// SetupKey returns the secure-setup key pair, or nil for regular devices.
func (d *Device) SetupKey() *setupcrypto.KeyPair { return d.setupKey }

// IsSetupDevice reports whether the device is being provisioned.
func (d *Device) IsSetupDevice() bool { return d.setupKey != nil }

// LanIP returns the last known LAN address.
func (d *Device) LanIP() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lanIP
}

// SetLanIP records a new LAN address.
func (d *Device) SetLanIP(ip string) {
	d.mu.Lock()
	d.lanIP = ip
	d.mu.Unlock()
}

// LanConfig returns the LAN key configuration, or nil.
func (d *Device) LanConfig() *lanconfig.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lanConfig
}

// SetLanConfig replaces the LAN key configuration.
func (d *Device) SetLanConfig(cfg *lanconfig.Config) {
	d.mu.Lock()
	d.lanConfig = cfg
	d.mu.Unlock()
}

// LanDisabled reports whether LAN attempts are suspended for this device.
func (d *Device) LanDisabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lanDisabled
}

// SetLanDisabled suspends or resumes LAN attempts.
func (d *Device) SetLanDisabled(disabled bool) {
	d.mu.Lock()
	d.lanDisabled = disabled
	d.mu.Unlock()
}

// OnPropertyChange sets a callback invoked after every property update.
func (d *Device) OnPropertyChange(fn func(dsn string, p Property)) {
	d.mu.Lock()
	d.onPropertyChange = fn
	d.mu.Unlock()
}

// AddProperty declares a property. Existing values are kept.
func (d *Device) AddProperty(name, baseType string, ackEnabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.properties[name]; ok {
		p.BaseType = baseType
		p.AckEnabled = ackEnabled
		return
	}
	d.properties[name] = &Property{Name: name, BaseType: baseType, AckEnabled: ackEnabled}
}

// Property returns a snapshot of the named property.
func (d *Device) Property(name string) (Property, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.properties[name]
	if !ok {
		return Property{}, false
	}
	return *p, true
}

// Properties returns snapshots of all properties.
func (d *Device) Properties() []Property {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Property, 0, len(d.properties))
	for _, p := range d.properties {
		out = append(out, *p)
	}
	return out
}

// UpdateProperty stores a new value for a declared property.
func (d *Device) UpdateProperty(name string, value any, metadata map[string]string, src Source) error {
	d.mu.Lock()
	p, ok := d.properties[name]
	if !ok {
		d.mu.Unlock()
		return ErrPropertyNotFound
	}
	p.Value = value
	if metadata != nil {
		p.Metadata = metadata
	}
	p.UpdatedAt = time.Now()
	p.Source = src
	snap := *p
	cb := d.onPropertyChange
	d.mu.Unlock()

	if cb != nil {
		cb(d.dsn, snap)
	}
	return nil
}

// ConnectionStatus returns the node connection status reported by the
// gateway ("Online", "Offline" or empty when unknown).
func (d *Device) ConnectionStatus() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connStatus
}

// SetConnectionStatus records a node connection status.
func (d *Device) SetConnectionStatus(status string) {
	d.mu.Lock()
	d.connStatus = status
	d.mu.Unlock()
}

// SetupDetails returns the last status.json body a setup device reported.
func (d *Device) SetupDetails() json.RawMessage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.setupDetails
}

// SetSetupDetails records a status.json body.
func (d *Device) SetSetupDetails(details json.RawMessage) {
	d.mu.Lock()
	d.setupDetails = append(json.RawMessage(nil), details...)
	d.mu.Unlock()
}
