package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/discovery"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
)

// Rediscovery defaults.
const (
	DefaultInterval    = 1 * time.Second
	DefaultMaxAttempts = 10
)

// Rediscovery errors.
var (
	ErrClosed     = errors.New("rediscovery closed")
	ErrNoHost     = errors.New("no host to resolve")
	ErrNoResolver = errors.New("no resolver configured")
	ErrGaveUp     = errors.New("device not found by mDNS")
)

// State represents the rediscovery state.
type State uint8

const (
	// StateIdle indicates no query loop is running.
	StateIdle State = iota

	// StateQuerying indicates the query loop is running.
	StateQuerying

	// StateResolved indicates the last loop found the device.
	StateResolved

	// StateFailed indicates the last loop ran out of attempts.
	StateFailed

	// StateClosed indicates the rediscovery has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateQuerying:
		return "QUERYING"
	case StateResolved:
		return "RESOLVED"
	case StateFailed:
		return "FAILED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Rediscovery.
type Config struct {
	// Interval between failed attempts. Default: DefaultInterval.
	Interval time.Duration

	// MaxAttempts bounds one loop. Default: DefaultMaxAttempts.
	MaxAttempts int

	// QueryTimeout bounds a single resolver call. Default: Interval.
	QueryTimeout time.Duration

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default rediscovery configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Status is a snapshot of the rediscovery.
type Status struct {
	State               State
	ConsecutiveFailures int
	LastKnownIP         net.IP
	InProgress          bool
}

// Rediscovery runs a bounded mDNS query loop for one device.
type Rediscovery struct {
	config   Config
	resolver discovery.Resolver

	mu       sync.Mutex
	state    State
	host     string
	failures int
	lastIP   net.IP
	cancel   context.CancelFunc
	done     chan struct{}

	onStateChange func(oldState, newState State)
	onFound       func(ip net.IP)
	onFailed      func(err error)
	onAttempt     func(attempt int)
}

// New creates a rediscovery using the given resolver.
func New(resolver discovery.Resolver, config Config) *Rediscovery {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = config.Interval
	}
	return &Rediscovery{
		config:   config,
		resolver: resolver,
		state:    StateIdle,
	}
}

// Start begins resolving host. Starting while a loop is running is a no-op.
func (r *Rediscovery) Start(host string) error {
	if host == "" {
		return ErrNoHost
	}
	if r.resolver == nil {
		return ErrNoResolver
	}

	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state == StateQuerying {
		r.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	oldState := r.state
	r.state = StateQuerying
	r.host = host
	r.failures = 0
	r.cancel = cancel
	r.done = done
	onStateChange := r.onStateChange
	r.mu.Unlock()

	if onStateChange != nil {
		onStateChange(oldState, StateQuerying)
	}

	go r.loop(ctx, host, done)
	return nil
}

// Stop cancels a running loop and waits for it to exit. Stop is idempotent.
func (r *Rediscovery) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	if r.state == StateQuerying {
		r.state = StateIdle
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Close stops the loop and rejects further starts.
func (r *Rediscovery) Close() {
	r.Stop()

	r.mu.Lock()
	oldState := r.state
	r.state = StateClosed
	onStateChange := r.onStateChange
	r.mu.Unlock()

	if onStateChange != nil && oldState != StateClosed {
		onStateChange(oldState, StateClosed)
	}
}

// Running reports whether a query loop is active.
func (r *Rediscovery) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateQuerying
}

// State returns the current state.
func (r *Rediscovery) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns a snapshot of the rediscovery.
func (r *Rediscovery) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:               r.state,
		ConsecutiveFailures: r.failures,
		LastKnownIP:         r.lastIP,
		InProgress:          r.state == StateQuerying,
	}
}

// SetLastKnownIP records the address the device was last reached at.
func (r *Rediscovery) SetLastKnownIP(ip net.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastIP = ip
}

// OnStateChange sets a callback for state changes.
func (r *Rediscovery) OnStateChange(fn func(oldState, newState State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
}

// OnFound sets a callback for a successful resolution.
func (r *Rediscovery) OnFound(fn func(ip net.IP)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFound = fn
}

// OnFailed sets a callback for a loop that ran out of attempts.
func (r *Rediscovery) OnFailed(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailed = fn
}

// OnAttempt sets a callback invoked before each query.
func (r *Rediscovery) OnAttempt(fn func(attempt int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAttempt = fn
}

func (r *Rediscovery) loop(ctx context.Context, host string, done chan struct{}) {
	defer close(done)

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		r.mu.Lock()
		onAttempt := r.onAttempt
		r.mu.Unlock()
		if onAttempt != nil {
			onAttempt(attempt)
		}

		qctx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
		ip, err := r.resolver.Resolve(qctx, host)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			r.debugLog("rediscovery resolved", "host", host, "ip", ip.String(), "attempt", attempt)
			r.finish(StateResolved, ip, nil)
			return
		}

		lastErr = err
		r.mu.Lock()
		r.failures = attempt
		r.mu.Unlock()
		r.debugLog("rediscovery attempt failed", "host", host, "attempt", attempt, "error", err)

		if attempt == r.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.config.Interval):
		}
	}

	r.finish(StateFailed, nil, lanerr.Wrap(lanerr.ErrNetwork,
		fmt.Sprintf("%s after %d attempts", host, r.config.MaxAttempts),
		errors.Join(ErrGaveUp, lastErr)))
}

func (r *Rediscovery) finish(state State, ip net.IP, err error) {
	r.mu.Lock()
	if r.state != StateQuerying {
		r.mu.Unlock()
		return
	}
	oldState := r.state
	r.state = state
	r.cancel, r.done = nil, nil
	if ip != nil {
		r.lastIP = ip
	}
	onStateChange, onFound, onFailed := r.onStateChange, r.onFound, r.onFailed
	r.mu.Unlock()

	if onStateChange != nil {
		onStateChange(oldState, state)
	}
	if ip != nil && onFound != nil {
		onFound(ip)
	}
	if err != nil && onFailed != nil {
		onFailed(err)
	}
}

func (r *Rediscovery) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}
