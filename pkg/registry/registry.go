// Package registry tracks the devices the app can reach over the LAN and
// their property values.
//
// Sessions never hold each other's devices. Incoming requests are mapped to
// a device by the source address of the request or, during provisioning,
// by the single setup-device binding.
package registry

import (
	"sort"
	"sync"
)

// Registry is a concurrency-safe set of devices keyed by DSN.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	setup   *Device
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Add registers a device.
func (r *Registry) Add(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.DSN()]; ok {
		return ErrDuplicateDevice
	}
	r.devices[d.DSN()] = d
	return nil
}

// Remove unregisters a device. The setup binding is cleared if it pointed
// at the device.
func (r *Registry) Remove(dsn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, dsn)
	if r.setup != nil && r.setup.DSN() == dsn {
		r.setup = nil
	}
}

// ByDSN returns the device with the given DSN.
func (r *Registry) ByDSN(dsn string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[dsn]
	return d, ok
}

// ByIP returns the non-node device whose last known LAN address is ip.
func (r *Registry) ByIP(ip string) (*Device, bool) {
	if ip == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if !d.IsNode() && d.LanIP() == ip {
			return d, true
		}
	}
	return nil, false
}

// All returns every device sorted by DSN.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DSN() < out[j].DSN() })
	return out
}

// Nodes returns the nodes behind the given gateway.
func (r *Registry) Nodes(gatewayDSN string) []*Device {
	var out []*Device
	for _, d := range r.All() {
		if d.IsNode() && d.GatewayDSN() == gatewayDSN {
			out = append(out, d)
		}
	}
	return out
}

// SetSetupDevice binds the device being provisioned. Passing nil clears
// the binding. The device is also added to the registry.
func (r *Registry) SetSetupDevice(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setup = d
	if d != nil {
		r.devices[d.DSN()] = d
	}
}

// SetupDevice returns the device being provisioned, or nil.
func (r *Registry) SetupDevice() *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.setup
}

// Lookup resolves the device an inbound request belongs to: the setup
// device when one is bound, otherwise the device at the client address.
func (r *Registry) Lookup(clientIP string) (*Device, bool) {
	if d := r.SetupDevice(); d != nil {
		return d, true
	}
	return r.ByIP(clientIP)
}
