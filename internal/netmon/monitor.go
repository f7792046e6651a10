package netmon

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Config holds connectivity probe settings.
type Config struct {
	// ProbeURL is requested with HEAD to decide online/offline.
	ProbeURL string

	// Interval between probes. Default: 15s.
	Interval time.Duration

	// Timeout for a single probe request. Default: 5s.
	Timeout time.Duration
}

// reconnectWindow is how long JustReconnected stays true after an
// offline -> online transition.
const reconnectWindow = 5 * time.Second

// Monitor watches backend connectivity and exposes a single online flag plus
// a one-shot reconnect edge signal. The initial state is assumed online; the
// first probe runs asynchronously after Start, so callers never block on a
// network round-trip before first render.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client

	mu          sync.RWMutex
	online      bool
	reconnectAt time.Time

	reconnected chan struct{}
	stop        chan struct{}
	stopOnce    sync.Once
}

// New creates a monitor. Call Start to begin probing.
func New(cfg Config) *Monitor {
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Monitor{
		probeURL:    cfg.ProbeURL,
		interval:    cfg.Interval,
		client:      &http.Client{Timeout: cfg.Timeout},
		online:      true,
		reconnected: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
}

// Start launches the probe loop. The first probe fires immediately but in
// the background.
func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) run() {
	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) probe() {
	if m.probeURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodHead, m.probeURL, nil)
	if err != nil {
		log.Printf("[NetMonitor] bad probe URL %q: %v", m.probeURL, err)
		return
	}
	resp, err := m.client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	m.SetOnline(err == nil)
}

// SetOnline records a connectivity observation. Exposed so callers that see
// a live request fail can flip the state without waiting for the next probe.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	if !was && online {
		m.reconnectAt = time.Now()
	}
	m.mu.Unlock()

	if !was && online {
		log.Printf("[NetMonitor] back online")
		// Coalesce: at most one pending reconnect signal no matter how
		// many transitions fire in quick succession.
		select {
		case m.reconnected <- struct{}{}:
		default:
		}
	} else if was && !online {
		log.Printf("[NetMonitor] connection lost")
	}
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// JustReconnected reports whether an offline -> online transition happened
// within the last few seconds. Used by the UI for a transient notice.
func (m *Monitor) JustReconnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.reconnectAt.IsZero() && time.Since(m.reconnectAt) < reconnectWindow
}

// Reconnected delivers one signal per offline -> online edge. The sync queue
// manager consumes it to trigger an immediate drain.
func (m *Monitor) Reconnected() <-chan struct{} {
	return m.reconnected
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
