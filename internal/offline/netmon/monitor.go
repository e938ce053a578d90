// Package netmon provides the network-state monitor for the offline
// subsystem. It probes backend reachability on an interval, tracks the
// session's connectivity history, and publishes typed state-change events
// to subscribers.
//
// The monitor emits exactly one event per transition. Guarding against
// overlapping sync runs during rapid flapping is the synchronizer's job,
// not the monitor's.
package netmon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// ProbeFunc reports whether the backend is currently reachable. It should
// be cheap and honor its context deadline; the remote client provides one
// based on the backend health endpoint.
type ProbeFunc func(ctx context.Context) bool

// StateChange is a connectivity transition event.
type StateChange struct {
	// Online is the new connectivity state.
	Online bool
	// At is when the transition was observed.
	At time.Time
}

// Monitor watches connectivity and publishes transitions.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	mu          sync.Mutex
	running     bool
	online      bool
	wasOffline  bool
	subscribers []chan StateChange

	done chan struct{}
	wg   sync.WaitGroup
}

// Config holds monitor configuration.
type Config struct {
	// Probe checks backend reachability. Required.
	Probe ProbeFunc

	// Interval is how often to probe (default: 5s).
	Interval time.Duration

	// ProbeTimeout bounds a single probe (default: 3s).
	ProbeTimeout time.Duration

	// Logger for monitor activity (default: stderr logger).
	Logger *log.Logger
}

// New creates a Monitor. The monitor must be started with Start() before it
// probes or emits events.
func New(cfg Config) (*Monitor, error) {
	if cfg.Probe == nil {
		return nil, fmt.Errorf("probe cannot be nil")
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[netmon] ", log.LstdFlags)
	}

	return &Monitor{
		probe:    cfg.Probe,
		interval: cfg.Interval,
		timeout:  cfg.ProbeTimeout,
		logger:   cfg.Logger,
		done:     make(chan struct{}),
	}, nil
}

// Start performs an initial probe to establish the baseline state and then
// begins the periodic probe loop. The baseline itself is not published as a
// transition; only changes after Start are.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.mu.Unlock()

	initial := m.runProbe()
	m.mu.Lock()
	m.online = initial
	if !initial {
		m.wasOffline = true
	}
	m.mu.Unlock()

	m.logger.Printf("Monitor started (online=%v)", initial)

	m.wg.Add(1)
	go m.probeLoop()

	return nil
}

// Stop halts probing and closes all subscriber channels. It blocks until
// the probe loop has exited.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	m.mu.Unlock()

	m.logger.Printf("Monitor stopped")
}

// IsOnline returns the most recently observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// WasOffline reports whether any offline period occurred this session.
// The flag is sticky: once set it stays true until the process restarts.
func (m *Monitor) WasOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wasOffline
}

// Subscribe registers a new subscriber and returns its event channel.
// The channel is buffered; a subscriber that falls behind loses events
// rather than stalling the monitor. Channels are closed by Stop.
func (m *Monitor) Subscribe() <-chan StateChange {
	ch := make(chan StateChange, 16)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// probeLoop runs the periodic probe until Stop is called.
func (m *Monitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return

		case <-ticker.C:
			m.observe(m.runProbe())
		}
	}
}

// runProbe executes a single probe with the configured timeout.
func (m *Monitor) runProbe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.probe(ctx)
}

// observe records a probe result and publishes a StateChange if the
// connectivity state flipped.
func (m *Monitor) observe(online bool) {
	m.mu.Lock()

	if online == m.online {
		m.mu.Unlock()
		return
	}

	m.online = online
	if !online {
		m.wasOffline = true
	}

	event := StateChange{Online: online, At: time.Now()}
	subs := make([]chan StateChange, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	if online {
		m.logger.Printf("Connectivity restored")
	} else {
		m.logger.Printf("Connectivity lost")
	}

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			m.logger.Printf("Warning: subscriber channel full, dropping event")
		}
	}
}
