package transport

import (
	"context"
	"sync"
	"time"
)

// DefaultKeepAliveInterval is the delay between local registration refreshes.
const DefaultKeepAliveInterval = 10 * time.Second

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// Interval between beats. Default: 10 seconds.
	Interval time.Duration

	// BeatTimeout bounds one beat. Default: Interval.
	BeatTimeout time.Duration
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{Interval: DefaultKeepAliveInterval}
}

// KeepAliveStats holds keep-alive statistics.
type KeepAliveStats struct {
	Beats       uint64
	Failures    uint64
	LastBeat    time.Time
	LastSuccess time.Time
}

// KeepAlive calls beat once per interval while running. The first beat
// happens one interval after Start. Reset postpones the next beat to a
// full interval from now.
type KeepAlive struct {
	config KeepAliveConfig
	beat   func(ctx context.Context) error

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	resetCh   chan struct{}
	onFailure func(err error)
	stats     KeepAliveStats
}

// NewKeepAlive creates a keep-alive that calls beat on every tick.
func NewKeepAlive(config KeepAliveConfig, beat func(ctx context.Context) error) *KeepAlive {
	if config.Interval <= 0 {
		config.Interval = DefaultKeepAliveInterval
	}
	if config.BeatTimeout <= 0 {
		config.BeatTimeout = config.Interval
	}
	return &KeepAlive{
		config: config,
		beat:   beat,
	}
}

// OnFailure sets a callback invoked with every failed beat.
func (ka *KeepAlive) OnFailure(fn func(err error)) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.onFailure = fn
}

// Start begins the beat loop. Starting a running keep-alive restarts its
// timer, like Reset.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		ka.Reset()
		return
	}
	ka.running = true
	stopCh := make(chan struct{})
	resetCh := make(chan struct{}, 1)
	ka.stopCh = stopCh
	ka.resetCh = resetCh
	interval := ka.config.Interval
	ka.mu.Unlock()

	go ka.loop(ctx, interval, stopCh, resetCh)
}

// Stop ends the beat loop. A beat already in flight is not interrupted.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
	ka.stopCh = nil
	ka.resetCh = nil
}

// Reset postpones the next beat by a full interval.
func (ka *KeepAlive) Reset() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if !ka.running {
		return
	}
	select {
	case ka.resetCh <- struct{}{}:
	default:
	}
}

// SetInterval changes the interval. It applies from the next Start.
func (ka *KeepAlive) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.config.Interval = d
}

// Interval returns the configured interval.
func (ka *KeepAlive) Interval() time.Duration {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.config.Interval
}

// IsRunning returns true if the beat loop is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.stats
}

func (ka *KeepAlive) loop(ctx context.Context, interval time.Duration, stopCh, resetCh chan struct{}) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			ka.mu.Lock()
			if ka.stopCh == stopCh {
				ka.running = false
				ka.stopCh = nil
				ka.resetCh = nil
			}
			ka.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-resetCh:
			timer.Reset(interval)
		case <-timer.C:
			ka.doBeat(ctx, stopCh)
			timer.Reset(interval)
		}
	}
}

func (ka *KeepAlive) doBeat(ctx context.Context, stopCh chan struct{}) {
	beatCtx, cancel := context.WithTimeout(ctx, ka.config.BeatTimeout)
	defer cancel()

	now := time.Now()
	err := ka.beat(beatCtx)

	ka.mu.Lock()
	if ka.stopCh != stopCh {
		ka.mu.Unlock()
		return
	}
	ka.stats.Beats++
	ka.stats.LastBeat = now
	if err == nil {
		ka.stats.LastSuccess = now
	} else {
		ka.stats.Failures++
	}
	onFailure := ka.onFailure
	ka.mu.Unlock()

	if err != nil && onFailure != nil {
		onFailure(err)
	}
}
