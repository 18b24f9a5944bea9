package mcpserver

import (
	"sync"
	"time"

	"mcploop/pkg/clock"
)

// keepaliveSupervisor runs a periodic ping that detects dead peers and
// recovers gracefully from host clock jumps.
type keepaliveSupervisor struct {
	server     *Server
	intervalMS int64

	mu      sync.Mutex
	lastRun int64
	handle  clock.TimerHandle
}

func newKeepaliveSupervisor(server *Server, intervalMS int64) *keepaliveSupervisor {
	return &keepaliveSupervisor{server: server, intervalMS: intervalMS}
}

func (k *keepaliveSupervisor) start() {
	k.mu.Lock()
	k.lastRun = k.server.clock.MonotonicMS()
	k.mu.Unlock()

	k.handle = k.server.scheduler.Interval(time.Duration(k.intervalMS)*time.Millisecond, k.tick)
}

func (k *keepaliveSupervisor) stop() {
	if k.handle != nil {
		k.handle.Stop()
	}
}

// tick runs one keepalive pass: detect a clock jump and forgive the
// resulting gap, then ping every client still inside the dead-peer
// deadline and disconnect the rest.
func (k *keepaliveSupervisor) tick() {
	now := k.server.clock.MonotonicMS()

	k.mu.Lock()
	elapsed := now - k.lastRun
	k.lastRun = now
	k.mu.Unlock()

	connected := k.server.connectedClients()

	if float64(elapsed) > 1.5*float64(k.intervalMS) {
		for _, c := range connected {
			c.lastPongRecv.Store(now)
		}
	}

	deadline := 2 * k.intervalMS
	for _, c := range connected {
		if now-c.lastPongRecv.Load() < deadline {
			c.sendPing([]byte("ping"))
			c.lastPingSent.Store(now)
		} else {
			k.server.disconnect(c, 1006, "Connection timeout")
		}
	}
}

// connectedClients snapshots every client currently in state
// Connected, under the registry lock.
func (s *Server) connectedClients() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.State() == StateConnected {
			out = append(out, c)
		}
	}
	return out
}
