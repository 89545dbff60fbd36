package connection

import (
	"sync"
	"time"
)

// Heartbeat calls a send function on a fixed interval. At most one ticker is
// active at a time; Start while running is a no-op.
type Heartbeat struct {
	interval time.Duration
	beat     func()

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
}

// NewHeartbeat creates a stopped Heartbeat. A non-positive interval makes
// Start a no-op.
func NewHeartbeat(interval time.Duration, beat func()) *Heartbeat {
	return &Heartbeat{
		interval: interval,
		beat:     beat,
	}
}

// Start begins ticking and reports whether a new ticker was started.
func (h *Heartbeat) Start() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ticker != nil || h.interval <= 0 {
		return false
	}

	ticker := time.NewTicker(h.interval)
	stop := make(chan struct{})
	h.ticker = ticker
	h.stop = stop

	go h.run(ticker, stop)
	return true
}

// Stop halts the ticker. It does not wait for an in-flight beat to return,
// so it is safe to call from inside one.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ticker == nil {
		return
	}
	h.ticker.Stop()
	close(h.stop)
	h.ticker = nil
	h.stop = nil
}

// Running reports whether a ticker is active.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ticker != nil
}

func (h *Heartbeat) run(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			h.beat()
		}
	}
}
