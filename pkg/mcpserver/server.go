package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcploop/pkg/clock"
	"mcploop/pkg/jsonrpc"
	"mcploop/pkg/tools"
)

// defaultWriteTimeout bounds a single outbound frame write.
const defaultWriteTimeout = 10 * time.Second

// ErrAlreadyRunning and ErrNotRunning report the two invalid start/stop
// transitions: starting a server that is already running, and stopping
// one that was never started.
var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrNotRunning     = errors.New("server not running")
	ErrPortRangeSpent = errors.New("no free port in configured range")
)

// Hooks are the four outward callbacks a server exposes for observing
// connection lifecycle events. Each is optional; a nil hook is simply
// skipped.
type Hooks struct {
	OnConnect    func(client *Client)
	OnMessage    func(client *Client, payload []byte)
	OnDisconnect func(client *Client, code uint16, reason string)
	OnError      func(client *Client, message string)
}

// Server is the TCP listener and client registry, wired to a JSON-RPC
// dispatcher and a keepalive supervisor.
type Server struct {
	authToken    string
	hooks        Hooks
	clock        clock.Clock
	scheduler    clock.Scheduler
	readTimeout  time.Duration
	writeTimeout time.Duration

	dispatcher *jsonrpc.Dispatcher

	mu       sync.Mutex
	listener net.Listener
	clients  map[string]*Client
	running  bool

	keepalive *keepaliveSupervisor

	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// Config configures a new Server.
type Config struct {
	// AuthToken is the shared secret clients must present. Empty means
	// any client is accepted; the server should emit a security
	// warning log line in that case, left to the caller, who has the
	// logger.
	AuthToken string
	Registry  tools.Registry
	Info      jsonrpc.ServerInfo
	Clock     clock.Clock
	Scheduler clock.Scheduler
	Hooks     Hooks
	// KeepaliveIntervalMS is the keepalive supervisor's tick period
	// (default 30000).
	KeepaliveIntervalMS int64
	// WriteTimeout bounds a single outbound frame write. Defaults to
	// 10s. Negative disables the deadline.
	WriteTimeout time.Duration
	// ReadTimeout bounds a single inbound frame read. Defaults to three
	// times the keepalive interval. Negative disables the deadline.
	ReadTimeout time.Duration
}

// New builds a Server from cfg, defaulting Clock/Scheduler to their
// production implementations and the keepalive interval to 30000ms.
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = clock.Goroutine{}
	}
	interval := cfg.KeepaliveIntervalMS
	if interval == 0 {
		interval = 30000
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	} else if writeTimeout < 0 {
		writeTimeout = 0
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 3 * time.Duration(interval) * time.Millisecond
	} else if readTimeout < 0 {
		readTimeout = 0
	}

	s := &Server{
		authToken:    cfg.AuthToken,
		hooks:        cfg.Hooks,
		clock:        cfg.Clock,
		scheduler:    cfg.Scheduler,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		dispatcher:   jsonrpc.New(cfg.Registry, cfg.Info),
		clients:      make(map[string]*Client),
	}
	s.keepalive = newKeepaliveSupervisor(s, interval)
	return s
}

// Dispatcher exposes the server's JSON-RPC dispatcher so an embedder
// can register extra methods or resolve deferred tool calls.
func (s *Server) Dispatcher() *jsonrpc.Dispatcher { return s.dispatcher }

func (s *Server) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bgCtx == nil {
		return context.Background()
	}
	return s.bgCtx
}

// Start binds to a free port on 127.0.0.1 in [portMin, portMax] by
// trying a random permutation of the range and attempting to bind each
// candidate until one succeeds, then begins accepting connections and
// ticking the keepalive supervisor.
func (s *Server) Start(portMin, portMax int) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrAlreadyRunning
	}
	s.mu.Unlock()

	listener, port, err := bindInRange(portMin, portMax)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.scheduler.Spawn(s.acceptLoop)
	s.keepalive.start()

	return port, nil
}

// ListenAndServe starts the server and returns the bound port without
// blocking; a background goroutine stops the server once ctx is done.
// A convenience wrapper named after http.Server's ListenAndServe,
// adapted for the explicit port range this protocol requires.
func (s *Server) ListenAndServe(ctx context.Context, portMin, portMax int) (int, error) {
	port, err := s.Start(portMin, portMax)
	if err != nil {
		return 0, err
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return port, nil
}

// bindInRange picks a free port in [min, max], trying candidates in
// random order so repeated restarts don't pile onto the same port.
func bindInRange(min, max int) (net.Listener, int, error) {
	if min > max {
		return nil, 0, fmt.Errorf("invalid port range [%d, %d]", min, max)
	}
	for _, port := range randomPermutation(min, max) {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return listener, port, nil
		}
	}
	return nil, 0, ErrPortRangeSpent
}

// randomPermutation returns every port in [min, max] in random order,
// using crypto/rand so startup never depends on an unseeded global PRNG.
func randomPermutation(min, max int) []int {
	ports := make([]int, max-min+1)
	for i := range ports {
		ports[i] = min + i
	}
	for i := len(ports) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		ports[i], ports[j.Int64()] = ports[j.Int64()], ports[i]
	}
	return ports
}

// Stop shuts the server down: every client is sent close 1001 "Server
// shutting down", the registry is cleared, the listener and keepalive
// ticker stop, and the dispatcher's deferred-response table is
// cleared.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	listener := s.listener
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[string]*Client)
	cancel := s.bgCancel
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.keepalive.stop()

	for _, c := range clients {
		s.notifyDisconnect(c, 1001, "Server shutting down")
		c.Close(1001, "Server shutting down")
	}

	s.dispatcher.Deferred.Clear()

	if cancel != nil {
		cancel()
	}

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.scheduler.Spawn(func() { s.handleConn(conn) })
	}
}

func (s *Server) handleConn(conn net.Conn) {
	id, err := generateClientID()
	if err != nil {
		conn.Close()
		return
	}

	client := newClient(id, conn, s)

	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()

	s.notifyConnect(client)
	client.run()
}

// generateClientID mints a per-connection identifier with uuid.NewRandom,
// falling back to a raw crypto/rand hex string on the rare entropy-read
// failure rather than refusing the connection outright.
func generateClientID() (string, error) {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String(), nil
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// disconnect is the single exit path from the registry: it checks
// membership, and only the goroutine that observes the client still
// present performs the removal and the single on_disconnect call,
// guaranteeing every client's disconnect notification fires exactly
// once regardless of which termination path reached it first (a read
// error and a keepalive timeout racing to disconnect the same client,
// for instance).
func (s *Server) disconnect(c *Client, code uint16, reason string) {
	s.mu.Lock()
	_, present := s.clients[c.ID]
	if present {
		delete(s.clients, c.ID)
	}
	s.mu.Unlock()

	if !present {
		return
	}

	s.notifyDisconnect(c, code, reason)
	c.Close(code, reason)
}

// Send delivers a JSON-RPC notification to one client by id.
func (s *Server) Send(clientID, method string, params any) error {
	s.mu.Lock()
	c, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("send: unknown client %q", clientID)
	}
	return c.Notify(method, params)
}

// Broadcast delivers a JSON-RPC notification to every connected client.
func (s *Server) Broadcast(method string, params any) {
	s.mu.Lock()
	targets := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		c.Notify(method, params)
	}
}

func (s *Server) notifyConnect(c *Client) {
	if s.hooks.OnConnect != nil {
		s.hooks.OnConnect(c)
	}
}

func (s *Server) notifyMessage(c *Client, payload []byte) {
	if s.hooks.OnMessage != nil {
		s.hooks.OnMessage(c, payload)
	}
}

func (s *Server) notifyDisconnect(c *Client, code uint16, reason string) {
	if s.hooks.OnDisconnect != nil {
		s.hooks.OnDisconnect(c, code, reason)
	}
}

func (s *Server) notifyError(c *Client, message string) {
	if s.hooks.OnError != nil {
		s.hooks.OnError(c, message)
	}
}
