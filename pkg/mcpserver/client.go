package mcpserver

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mcploop/pkg/authtoken"
	"mcploop/pkg/jsonrpc"
	"mcploop/pkg/wsproto"
)

// State is a Client's position in the connection lifecycle.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by outbound sends when the client's
// handshake has not completed or the connection is closing/closed.
// Outbound sends require state Connected.
var ErrNotConnected = errors.New("client not connected")

// inboxDepth bounds how many parsed messages may be queued for a
// client's dispatch worker before the read loop blocks. Ordinary MCP
// traffic is request/response, so this rarely fills.
const inboxDepth = 32

// Client is one accepted connection. It owns its socket exclusively
// and runs a two-phase consumer, handshake then frame dispatch, on
// a dedicated goroutine, started by Server.handleConn.
type Client struct {
	ID   string
	conn net.Conn

	server *Server

	mu     sync.Mutex
	state  State
	writer *wsproto.FrameWriter

	lastPingSent atomic.Int64
	lastPongRecv atomic.Int64

	inbox      chan []byte
	closeOnce  sync.Once
	closedChan chan struct{}
}

func newClient(id string, conn net.Conn, server *Server) *Client {
	return &Client{
		ID:         id,
		conn:       conn,
		server:     server,
		state:      StateConnecting,
		writer:     wsproto.NewFrameWriter(conn),
		inbox:      make(chan []byte, inboxDepth),
		closedChan: make(chan struct{}),
	}
}

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// setReadDeadline arms the socket's read deadline for the next read,
// per the server's configured ReadTimeout.
func (c *Client) setReadDeadline() {
	if c.server.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
	}
}

// setWriteDeadline arms the socket's write deadline for the next
// write, per the server's configured WriteTimeout.
func (c *Client) setWriteDeadline() {
	if c.server.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.server.writeTimeout))
	}
}

// run executes the full connection lifecycle: the handshake (phase A),
// then the frame dispatch loop (phase B), on the calling goroutine.
// Server.handleConn calls this from a fresh goroutine per connection.
func (c *Client) run() {
	br := bufio.NewReader(c.conn)

	if !c.handshake(br) {
		return
	}

	c.setState(StateConnected)
	now := c.server.clock.MonotonicMS()
	c.lastPingSent.Store(now)
	c.lastPongRecv.Store(now)

	c.server.scheduler.Spawn(c.dispatchWorker)

	c.readLoop(br)
}

// handshake performs the HTTP upgrade exchange. It returns true if the
// connection was upgraded and should proceed to the frame dispatch
// loop. On a malformed or rejected request it writes the HTTP error
// response; on any failure it disconnects the client with code 1006 and
// returns false.
func (c *Client) handshake(br *bufio.Reader) bool {
	c.setReadDeadline()
	req, err := wsproto.ReadRequest(br)
	if err != nil {
		var hsErr *wsproto.HandshakeError
		if errors.As(err, &hsErr) {
			c.setWriteDeadline()
			c.conn.Write(wsproto.ErrorResponse(hsErr.Status, hsErr.Error()))
		}
		c.server.notifyError(c, fmt.Sprintf("handshake read error: %v", err))
		c.server.disconnect(c, 1006, fmt.Sprintf("handshake read error: %v", err))
		return false
	}

	if err := wsproto.Validate(req, c.server.authToken); err != nil {
		var hsErr *wsproto.HandshakeError
		status := 400
		if errors.As(err, &hsErr) {
			status = hsErr.Status
		}
		logMsg := err.Error()
		if errors.Is(err, wsproto.ErrUnauthorized) {
			logMsg = fmt.Sprintf("%s (presented token %s)", logMsg, authtoken.Mask(req.Header.Get(wsproto.AuthHeader)))
		}
		c.setWriteDeadline()
		c.conn.Write(wsproto.ErrorResponse(status, err.Error()))
		c.server.notifyError(c, logMsg)
		c.server.disconnect(c, 1006, err.Error())
		return false
	}

	resp := wsproto.SwitchingResponse(req.Header.Get("Sec-WebSocket-Key"))
	c.setWriteDeadline()
	if _, err := c.conn.Write(resp); err != nil {
		c.server.disconnect(c, 1006, fmt.Sprintf("handshake write error: %v", err))
		return false
	}

	return true
}

// readLoop parses frames until the connection ends, dispatching each
// by opcode.
func (c *Client) readLoop(br *bufio.Reader) {
	reader := wsproto.NewFrameReader(br)

	for {
		c.setReadDeadline()
		frame, err := reader.ReadFrame()
		if err != nil {
			c.handleReadError(err)
			return
		}

		switch frame.Opcode {
		case wsproto.OpcodeText, wsproto.OpcodeBinary:
			select {
			case c.inbox <- frame.Payload:
			case <-c.closedChan:
				return
			}

		case wsproto.OpcodeClose:
			code, reason := wsproto.DecodeClosePayload(frame.Payload)
			if code == 0 {
				code = 1000
			}
			if c.State() == StateConnected {
				c.mu.Lock()
				c.setWriteDeadline()
				c.writer.WriteClose(code, reason)
				c.state = StateClosing
				c.mu.Unlock()
			}
			c.server.disconnect(c, code, reason)
			return

		case wsproto.OpcodePing:
			c.sendPong(frame.Payload)

		case wsproto.OpcodePong:
			c.lastPongRecv.Store(c.server.clock.MonotonicMS())

		case wsproto.OpcodeContinuation:
			c.server.notifyError(c, "Fragmented messages not supported")
			c.server.disconnect(c, 1003, "Unsupported data")
			return
		}
	}
}

// handleReadError maps a ReadFrame failure to the appropriate
// disconnect code: a protocol violation closes 1002, a clean EOF
// closes 1006, anything else is reported as a generic read error.
func (c *Client) handleReadError(err error) {
	var frameErr *wsproto.FrameError
	switch {
	case errors.As(err, &frameErr):
		c.server.notifyError(c, frameErr.Error())
		c.server.disconnect(c, 1002, frameErr.Error())
	case errors.Is(err, io.EOF):
		c.server.disconnect(c, 1006, "EOF")
	default:
		msg := fmt.Sprintf("Client read error: %v", err)
		c.server.notifyError(c, msg)
		c.server.disconnect(c, 1006, msg)
	}
}

// dispatchWorker drains c.inbox in order, delivering each payload to
// the dispatcher off the read loop's goroutine: on_message callbacks
// run via the scheduler's spawn, never inline from the read callback.
func (c *Client) dispatchWorker() {
	for {
		select {
		case payload, ok := <-c.inbox:
			if !ok {
				return
			}
			c.server.notifyMessage(c, payload)
			resp := c.server.dispatcher.Dispatch(c.server.ctx(), c, payload, c)
			if resp != nil {
				c.sendResponse(resp)
			}
		case <-c.closedChan:
			return
		}
	}
}

func (c *Client) sendResponse(resp *jsonrpc.Response) {
	if err := c.Send(resp); err != nil {
		c.server.notifyError(c, fmt.Sprintf("send response: %v", err))
	}
}

// Send implements jsonrpc.Sender by writing resp as a Text frame.
// pkg/jsonrpc's Deferred registry holds a Client behind this interface
// so a tool can resolve a deferred call without importing mcpserver.
func (c *Client) Send(resp *jsonrpc.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.writeText(body)
}

// Notify sends a JSON-RPC notification (no id) to this client, the
// way a server pushes an unsolicited method call outside the normal
// request/response cycle.
func (c *Client) Notify(method string, params any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	return c.writeText(body)
}

func (c *Client) writeText(body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrNotConnected
	}
	c.setWriteDeadline()
	return c.writer.WriteText(body)
}

// sendPing writes a ping frame, bounded by the write deadline.
func (c *Client) sendPing(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setWriteDeadline()
	return c.writer.WritePing(payload)
}

// sendPong answers an inbound ping, bounded by the same write deadline.
func (c *Client) sendPong(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setWriteDeadline()
	return c.writer.WritePong(payload)
}

// Close is idempotent: only the first call has any effect. It emits a
// close frame if the client is still Connected (not when the handshake
// never completed, nor when a reciprocal close frame was already sent
// and the state is Closing), then closes the socket.
func (c *Client) Close(code uint16, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state == StateConnected {
			c.setWriteDeadline()
			c.writer.WriteClose(code, reason)
		}
		c.state = StateClosing
		c.mu.Unlock()

		c.conn.Close()
		close(c.closedChan)

		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
	})
}
