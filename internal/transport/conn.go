// Package transport implements the TCP link to an AMS router: frame I/O,
// local port registration and invoke-ID matched request/response exchange.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrpasztoradam/goadsym/internal/ams"
)

// ErrClosed is returned for operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// ErrTimeout is returned when a request outlives the configured deadline.
var ErrTimeout = errors.New("transport: request timed out")

// Conn is a single TCP connection to an AMS router. One in-flight request
// per invoke ID; writes are serialized, reads run in a background loop.
type Conn struct {
	conn    net.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	timeout atomic.Int64 // request deadline in nanoseconds

	invokeID  atomic.Uint32
	pending   map[uint32]chan *ams.Packet
	pendingMu sync.Mutex

	// Router command replies (port connect/close). The router protocol
	// allows one outstanding command at a time.
	control chan *ams.Frame
}

// Dial connects to the router at address (host:port).
func Dial(ctx context.Context, address string, timeout time.Duration) (*Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	return newConn(netConn, timeout), nil
}

func newConn(netConn net.Conn, timeout time.Duration) *Conn {
	c := &Conn{
		conn:    netConn,
		pending: make(map[uint32]chan *ams.Packet),
		control: make(chan *ams.Frame, 1),
	}
	c.timeout.Store(int64(timeout))
	go c.readLoop()
	return c
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	err := c.conn.Close()

	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = nil
	c.pendingMu.Unlock()

	return err
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// SetTimeout changes the per-request deadline for subsequent calls.
func (c *Conn) SetTimeout(d time.Duration) {
	c.timeout.Store(int64(d))
}

// Timeout returns the current per-request deadline.
func (c *Conn) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// RegisterPort asks the router for a local AMS port. The reply carries the
// local NetID and the assigned port number.
func (c *Conn) RegisterPort(ctx context.Context) (ams.Addr, error) {
	if c.closed.Load() {
		return ams.Addr{}, ErrClosed
	}

	// Requested port zero lets the router pick one.
	if err := c.writeFrame(&ams.Frame{Command: ams.FrameCommandPortConnect, Payload: []byte{0, 0}}); err != nil {
		return ams.Addr{}, err
	}

	reply, err := c.waitControl(ctx)
	if err != nil {
		return ams.Addr{}, err
	}
	if reply.Command != ams.FrameCommandPortConnect || len(reply.Payload) < 8 {
		return ams.Addr{}, fmt.Errorf("transport: unexpected port connect reply (command 0x%04X, %d bytes)",
			reply.Command, len(reply.Payload))
	}

	var addr ams.Addr
	copy(addr.NetID[:], reply.Payload[0:6])
	addr.Port = ams.Port(binary.LittleEndian.Uint16(reply.Payload[6:8]))
	return addr, nil
}

// ReleasePort tells the router to free a previously registered port. The
// router does not acknowledge port close, so this is fire and forget.
func (c *Conn) ReleasePort(port ams.Port) error {
	if c.closed.Load() {
		return ErrClosed
	}
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(port))
	return c.writeFrame(&ams.Frame{Command: ams.FrameCommandPortClose, Payload: payload})
}

// Exchange sends one ADS request from source to target and waits for the
// matching response.
func (c *Conn) Exchange(ctx context.Context, target, source ams.Addr, commandID uint16, data []byte) (*ams.Packet, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	invokeID := c.invokeID.Add(1)
	req := ams.NewRequest(target, source, commandID, invokeID, data)

	respCh := make(chan *ams.Packet, 1)
	c.pendingMu.Lock()
	if c.pending == nil {
		c.pendingMu.Unlock()
		return nil, ErrClosed
	}
	c.pending[invokeID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, invokeID)
		c.pendingMu.Unlock()
	}()

	if err := c.writeFrame(req.Frame()); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp == nil {
			return nil, ErrClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.Timeout()):
		return nil, ErrTimeout
	}
}

func (c *Conn) writeFrame(f *ams.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if d := c.Timeout(); d > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
			return err
		}
	}
	return ams.WriteFrame(c.conn, f)
}

func (c *Conn) waitControl(ctx context.Context) (*ams.Frame, error) {
	select {
	case reply, ok := <-c.control:
		if !ok || reply == nil {
			return nil, ErrClosed
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.Timeout()):
		return nil, ErrTimeout
	}
}

func (c *Conn) readLoop() {
	for {
		frame, err := ams.ReadFrame(c.conn)
		if err != nil {
			if !c.closed.Load() {
				c.Close()
			}
			return
		}

		if frame.Command != ams.FrameCommandAMS {
			select {
			case c.control <- frame:
			default:
				// No waiter; the reply is stale.
			}
			continue
		}

		packet, err := ams.ParsePacket(frame.Payload)
		if err != nil {
			// Malformed packet; nothing to correlate it with.
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[packet.Header.InvokeID]
		c.pendingMu.Unlock()
		if ok && ch != nil {
			select {
			case ch <- packet:
			default:
			}
		}
	}
}
