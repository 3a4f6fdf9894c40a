// Package lanconfig holds the per-device LAN key configuration issued by
// the cloud and the providers that supply it.
package lanconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultKeepAlive is the registration interval used when the cloud sends
// no keep_alive value.
const DefaultKeepAlive = 10 * time.Second

// Provider errors.
var (
	ErrNoConfig = errors.New("no LAN config for device")
)

// Config is the "lanip" object of a device's LAN configuration.
type Config struct {
	KeyID     *int   `json:"lanip_key_id,omitempty" yaml:"lanip_key_id"`
	Key       string `json:"lanip_key,omitempty" yaml:"lanip_key"`
	KeepAlive int    `json:"keep_alive,omitempty" yaml:"keep_alive"`
	AutoSync  int    `json:"auto_sync,omitempty" yaml:"auto_sync"`
	Status    string `json:"status,omitempty" yaml:"status"`
}

// Wrapper is the cloud response envelope {"lanip": {...}}.
type Wrapper struct {
	LanIP *Config `json:"lanip"`
}

// Parse decodes a cloud LAN config response.
func Parse(data []byte) (*Config, error) {
	var w Wrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse lan config: %w", err)
	}
	if w.LanIP == nil {
		return nil, ErrNoConfig
	}
	return w.LanIP, nil
}

// HasKey reports whether the config carries both a key id and a key.
func (c *Config) HasKey() bool {
	return c != nil && c.KeyID != nil && c.Key != ""
}

// Secret returns the shared secret for key derivation.
func (c *Config) Secret() []byte {
	return []byte(c.Key)
}

// KeepAliveInterval returns the local_reg interval: a third of the
// cloud keep_alive, or DefaultKeepAlive when none is set.
func (c *Config) KeepAliveInterval() time.Duration {
	if c == nil || c.KeepAlive <= 0 {
		return DefaultKeepAlive
	}
	return time.Duration(c.KeepAlive) * time.Second / 3
}

// IntPtr is a helper for literal key ids.
func IntPtr(v int) *int { return &v }

// Provider supplies LAN configs by DSN.
type Provider interface {
	// LanConfig returns the current config for dsn.
	LanConfig(ctx context.Context, dsn string) (*Config, error)

	// Refresh fetches a fresh config for dsn, replacing any cached copy.
	Refresh(ctx context.Context, dsn string) (*Config, error)
}

// StaticProvider serves configs from memory. Refresh returns the stored
// config unchanged unless one was staged with Stage.
type StaticProvider struct {
	mu      sync.Mutex
	configs map[string]*Config
	staged  map[string]*Config
}

// NewStaticProvider creates a provider over the given configs.
func NewStaticProvider(configs map[string]*Config) *StaticProvider {
	p := &StaticProvider{
		configs: make(map[string]*Config, len(configs)),
		staged:  make(map[string]*Config),
	}
	for dsn, c := range configs {
		p.configs[dsn] = c
	}
	return p
}

// Set replaces the config for dsn.
func (p *StaticProvider) Set(dsn string, c *Config) {
	p.mu.Lock()
	p.configs[dsn] = c
	p.mu.Unlock()
}

// Stage records a config that the next Refresh for dsn will return, as
// if the cloud had rotated the key.
func (p *StaticProvider) Stage(dsn string, c *Config) {
	p.mu.Lock()
	p.staged[dsn] = c
	p.mu.Unlock()
}

// LanConfig implements Provider.
func (p *StaticProvider) LanConfig(_ context.Context, dsn string) (*Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.configs[dsn]
	if !ok {
		return nil, ErrNoConfig
	}
	return c, nil
}

// Refresh implements Provider.
func (p *StaticProvider) Refresh(ctx context.Context, dsn string) (*Config, error) {
	p.mu.Lock()
	if c, ok := p.staged[dsn]; ok {
		delete(p.staged, dsn)
		p.configs[dsn] = c
	}
	p.mu.Unlock()
	return p.LanConfig(ctx, dsn)
}

// Store persists configs between runs.
type Store interface {
	Load(dsn string) (*Config, error)
	Save(dsn string, c *Config) error
}

// CachedProvider serves configs from a Store and falls back to an
// upstream Provider, saving what it fetches.
type CachedProvider struct {
	Store    Store
	Upstream Provider
}

// LanConfig implements Provider.
func (p *CachedProvider) LanConfig(ctx context.Context, dsn string) (*Config, error) {
	if c, err := p.Store.Load(dsn); err == nil && c != nil {
		return c, nil
	}
	return p.Refresh(ctx, dsn)
}

// Refresh implements Provider.
func (p *CachedProvider) Refresh(ctx context.Context, dsn string) (*Config, error) {
	if p.Upstream == nil {
		return p.Store.Load(dsn)
	}
	c, err := p.Upstream.Refresh(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := p.Store.Save(dsn, c); err != nil {
		return nil, fmt.Errorf("cache lan config: %w", err)
	}
	return c, nil
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = (*CachedProvider)(nil)
)
