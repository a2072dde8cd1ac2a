package goadsym

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrpasztoradam/goadsym/internal/ads"
	"github.com/mrpasztoradam/goadsym/internal/ams"
	"github.com/mrpasztoradam/goadsym/internal/transport"
)

// Channel is the synchronous request/response link a PortSession drives.
// AMSChannel is the production implementation over AMS/TCP; Emulator is an
// in-memory one for tests.
type Channel interface {
	// Connect establishes the underlying link.
	Connect(ctx context.Context) error

	// Disconnect tears the link down. Must tolerate being called when
	// not connected.
	Disconnect() error

	// RegisterPort resolves the local device address: it asks the router
	// for a local AMS port and returns the local NetID plus the assigned
	// port number.
	RegisterPort(ctx context.Context) (ams.Addr, error)

	// Exchange performs one blocking request/response round trip against
	// target and returns the raw ADS response payload. An AMS-level error
	// code surfaces as an ads.Error.
	Exchange(ctx context.Context, target ams.Addr, cmd ads.Command, payload []byte) ([]byte, error)

	// SetTimeout bounds subsequent blocking calls.
	SetTimeout(d time.Duration)
}

// AMSChannel is the AMS/TCP implementation of Channel, one TCP connection to
// a router.
type AMSChannel struct {
	address string
	timeout time.Duration

	mu    sync.Mutex
	conn  *transport.Conn
	local ams.Addr
}

// NewAMSChannel creates a channel for the router at address (host:port).
func NewAMSChannel(address string, timeout time.Duration) *AMSChannel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AMSChannel{address: address, timeout: timeout}
}

func (c *AMSChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.Closed() {
		return nil
	}

	conn, err := transport.Dial(ctx, c.address, c.timeout)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *AMSChannel) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if c.local.Port != 0 {
		// Best effort: the router reclaims the port when the TCP
		// connection drops anyway.
		_ = c.conn.ReleasePort(c.local.Port)
	}

	err := c.conn.Close()
	c.conn = nil
	c.local = ams.Addr{}
	return err
}

func (c *AMSChannel) RegisterPort(ctx context.Context) (ams.Addr, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ams.Addr{}, transport.ErrClosed
	}

	local, err := conn.RegisterPort(ctx)
	if err != nil {
		return ams.Addr{}, err
	}
	if local.NetID.IsZero() || local.Port == 0 {
		return ams.Addr{}, fmt.Errorf("goadsym: router assigned invalid local address %s", local)
	}

	c.mu.Lock()
	c.local = local
	c.mu.Unlock()
	return local, nil
}

func (c *AMSChannel) Exchange(ctx context.Context, target ams.Addr, cmd ads.Command, payload []byte) ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	source := c.local
	c.mu.Unlock()

	if conn == nil {
		return nil, transport.ErrClosed
	}

	resp, err := conn.Exchange(ctx, target, source, uint16(cmd), payload)
	if err != nil {
		return nil, err
	}
	if resp.Header.ErrorCode != 0 {
		return nil, ads.Error(resp.Header.ErrorCode)
	}
	return resp.Data, nil
}

func (c *AMSChannel) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeout = d
	if c.conn != nil {
		c.conn.SetTimeout(d)
	}
}
