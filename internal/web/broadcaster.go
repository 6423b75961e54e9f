package web

import (
	"encoding/json"
	"sync"
	"time"
)

// ModuleTelemetry is one module's measured state at the end of a tick.
type ModuleTelemetry struct {
	Name       string  `json:"name"`
	SpeedMps   float64 `json:"speed_mps"`
	HeadingDeg float64 `json:"heading_deg"`
	DistanceM  float64 `json:"distance_m"`
}

// Snapshot is the telemetry of every module for one control-loop tick.
type Snapshot struct {
	Time    string            `json:"t"`
	Tick    int               `json:"tick"`
	Error   string            `json:"error,omitempty"`
	Modules []ModuleTelemetry `json:"modules"`
}

// TelemetryBroadcaster distributes snapshots to multiple SSE clients and
// keeps the latest one for polling. The control loop publishes; HTTP
// handlers only read what was published and never touch the hardware.
type TelemetryBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	latest  *Snapshot
}

// NewTelemetryBroadcaster creates a new broadcaster.
func NewTelemetryBroadcaster() *TelemetryBroadcaster {
	return &TelemetryBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast snapshots as JSON and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *TelemetryBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish stores s as the latest snapshot and sends it to all subscribed clients.
// Slow clients may miss snapshots (non-blocking, buffered).
func (b *TelemetryBroadcaster) Publish(s Snapshot) {
	if s.Time == "" {
		s.Time = time.Now().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	b.latest = &s
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
	b.mu.Unlock()
}

// Latest returns the most recent snapshot, if any.
func (b *TelemetryBroadcaster) Latest() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return Snapshot{}, false
	}
	return *b.latest, true
}
