package mcpserver

import (
	"net"
	"testing"
	"time"
)

func newTestServerWithFakes() (*Server, *fakeClock, *manualScheduler) {
	fc := &fakeClock{now: 1_000_000}
	sched := &manualScheduler{}
	s := New(Config{
		Registry:  emptyRegistry{},
		Clock:     fc,
		Scheduler: sched,
	})
	return s, fc, sched
}

func connectedTestClient(s *Server, id string) (*Client, net.Conn) {
	serverConn, clientConn := net.Pipe()
	c := newClient(id, serverConn, s)
	c.setState(StateConnected)
	now := s.clock.MonotonicMS()
	c.lastPingSent.Store(now)
	c.lastPongRecv.Store(now)
	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()
	return c, clientConn
}

func TestKeepaliveTimeoutClosesDeadClient(t *testing.T) {
	s, fc, sched := newTestServerWithFakes()
	var disconnectCode uint16
	s.hooks.OnDisconnect = func(c *Client, code uint16, reason string) {
		disconnectCode = code
	}

	c, clientConn := connectedTestClient(s, "c1")
	defer clientConn.Close()

	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := clientConn.Read(buf); err != nil {
				return
			}
		}
	}()

	s.keepalive.intervalMS = 30000
	s.keepalive.start()

	// Two ticks just over one interval apart (not a clock jump, since
	// each step stays under 1.5x the interval) without any pong in
	// between pushes the client past the 2x-interval dead-peer deadline.
	fc.advance(30001)
	sched.fireAll()
	fc.advance(30001)
	sched.fireAll()

	if disconnectCode != 1006 {
		t.Fatalf("disconnect code = %d, want 1006", disconnectCode)
	}
	if _, present := s.clients["c1"]; present {
		t.Fatal("timed-out client should have left the registry")
	}
	_ = c
}

func TestKeepaliveClockJumpGrantsGrace(t *testing.T) {
	s, fc, sched := newTestServerWithFakes()
	var disconnected bool
	s.hooks.OnDisconnect = func(c *Client, code uint16, reason string) {
		disconnected = true
	}

	_, clientConn := connectedTestClient(s, "c1")
	defer clientConn.Close()

	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := clientConn.Read(buf); err != nil {
				return
			}
		}
	}()

	s.keepalive.intervalMS = 30000
	s.keepalive.start()

	// Simulate a host sleep/wake: the clock jumps by more than 1.5x the
	// interval between ticks. The grace window should refresh
	// last_pong_recv for every connected client rather than timing it out.
	fc.advance(50000)
	sched.fireAll()

	if disconnected {
		t.Fatal("a clock jump should not close a connected client on the next tick")
	}
	if _, present := s.clients["c1"]; !present {
		t.Fatal("client should still be registered after the grace window")
	}
}

func TestKeepalivePingsLiveClient(t *testing.T) {
	s, fc, sched := newTestServerWithFakes()
	c, clientConn := connectedTestClient(s, "c1")
	defer clientConn.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := clientConn.Read(buf)
		if err == nil {
			done <- buf[:n]
		}
	}()

	s.keepalive.intervalMS = 30000
	s.keepalive.start()
	fc.advance(1000)
	sched.fireAll()

	frame := <-done
	if len(frame) == 0 {
		t.Fatal("expected a ping frame on the wire")
	}
	if c.lastPingSent.Load() != fc.MonotonicMS() {
		t.Fatalf("lastPingSent = %d, want %d", c.lastPingSent.Load(), fc.MonotonicMS())
	}
}

func TestKeepaliveStalledClientDoesNotBlockOthersPing(t *testing.T) {
	fc := &fakeClock{now: 1_000_000}
	sched := &manualScheduler{}
	s := New(Config{
		Registry:     emptyRegistry{},
		Clock:        fc,
		Scheduler:    sched,
		WriteTimeout: 50 * time.Millisecond,
	})

	// stalled has no reader on the other end of its pipe, so writing to
	// it blocks until the write deadline fires.
	_, stalledConn := connectedTestClient(s, "stalled")
	defer stalledConn.Close()

	_, liveConn := connectedTestClient(s, "live")
	defer liveConn.Close()

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := liveConn.Read(buf)
		if err == nil {
			received <- buf[:n]
		}
	}()

	s.keepalive.intervalMS = 30000
	s.keepalive.start()
	fc.advance(1000)

	fireDone := make(chan struct{})
	go func() {
		sched.fireAll()
		close(fireDone)
	}()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("live client never received a ping; stalled client's write blocked the tick")
	}

	select {
	case <-fireDone:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never returned; stalled client's write has no deadline")
	}
}
