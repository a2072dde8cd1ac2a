package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mrpasztoradam/goadsym/internal/ams"
)

// fakeRouter drives the server end of a net.Pipe with the given handler,
// one frame per invocation, until the pipe closes.
func fakeRouter(t *testing.T, server net.Conn, handle func(*ams.Frame) *ams.Frame) {
	t.Helper()
	go func() {
		for {
			frame, err := ams.ReadFrame(server)
			if err != nil {
				return
			}
			if reply := handle(frame); reply != nil {
				if err := ams.WriteFrame(server, reply); err != nil {
					return
				}
			}
		}
	}()
}

func pipeConn(t *testing.T, timeout time.Duration, handle func(*ams.Frame) *ams.Frame) *Conn {
	t.Helper()
	client, server := net.Pipe()
	fakeRouter(t, server, handle)
	c := newConn(client, timeout)
	t.Cleanup(func() {
		c.Close()
		server.Close()
	})
	return c
}

func TestRegisterPort(t *testing.T) {
	netID := ams.NetID{10, 0, 0, 5, 1, 1}
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		if frame.Command != ams.FrameCommandPortConnect {
			t.Errorf("router got command 0x%04X, want port connect", frame.Command)
		}
		payload := make([]byte, 8)
		copy(payload, netID[:])
		binary.LittleEndian.PutUint16(payload[6:8], 34000)
		return &ams.Frame{Command: ams.FrameCommandPortConnect, Payload: payload}
	})

	addr, err := c.RegisterPort(context.Background())
	if err != nil {
		t.Fatalf("RegisterPort() error = %v", err)
	}
	if addr.NetID != netID {
		t.Errorf("NetID = %v, want %v", addr.NetID, netID)
	}
	if addr.Port != 34000 {
		t.Errorf("Port = %d, want 34000", addr.Port)
	}
}

func TestRegisterPortShortReply(t *testing.T) {
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		return &ams.Frame{Command: ams.FrameCommandPortConnect, Payload: []byte{1, 2}}
	})

	if _, err := c.RegisterPort(context.Background()); err == nil {
		t.Error("RegisterPort() expected error for short reply")
	}
}

func TestExchange(t *testing.T) {
	want := []byte{0xCA, 0xFE}
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		req, err := ams.ParsePacket(frame.Payload)
		if err != nil {
			t.Errorf("ParsePacket() error = %v", err)
			return nil
		}
		return ams.NewResponse(req, 0, want).Frame()
	})

	target := ams.Addr{NetID: ams.NetID{10, 0, 0, 1, 1, 1}, Port: 851}
	source := ams.Addr{NetID: ams.NetID{10, 0, 0, 5, 1, 1}, Port: 34000}

	resp, err := c.Exchange(context.Background(), target, source, 0x0002, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if !bytes.Equal(resp.Data, want) {
		t.Errorf("response data = %v, want %v", resp.Data, want)
	}
	if resp.Header.InvokeID == 0 {
		t.Error("response carries invoke ID 0")
	}
}

func TestExchangeSequentialInvokeIDs(t *testing.T) {
	var seen []uint32
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		req, err := ams.ParsePacket(frame.Payload)
		if err != nil {
			return nil
		}
		seen = append(seen, req.Header.InvokeID)
		return ams.NewResponse(req, 0, nil).Frame()
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Exchange(ctx, ams.Addr{}, ams.Addr{}, 0x0004, nil); err != nil {
			t.Fatalf("Exchange() error = %v", err)
		}
	}
	if len(seen) != 3 || seen[0] >= seen[1] || seen[1] >= seen[2] {
		t.Errorf("invoke IDs = %v, want strictly increasing", seen)
	}
}

func TestExchangeTimeout(t *testing.T) {
	c := pipeConn(t, 50*time.Millisecond, func(frame *ams.Frame) *ams.Frame {
		return nil // swallow the request
	})

	_, err := c.Exchange(context.Background(), ams.Addr{}, ams.Addr{}, 0x0002, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Exchange() error = %v, want ErrTimeout", err)
	}
}

func TestExchangeContextCancel(t *testing.T) {
	c := pipeConn(t, time.Minute, func(frame *ams.Frame) *ams.Frame {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Exchange(ctx, ams.Addr{}, ams.Addr{}, 0x0002, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Exchange() error = %v, want context.Canceled", err)
	}
}

func TestExchangeAfterClose(t *testing.T) {
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		return nil
	})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !c.Closed() {
		t.Error("Closed() = false after Close()")
	}

	if _, err := c.Exchange(context.Background(), ams.Addr{}, ams.Addr{}, 0x0002, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Exchange() error = %v, want ErrClosed", err)
	}
	if _, err := c.RegisterPort(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterPort() error = %v, want ErrClosed", err)
	}
	if err := c.ReleasePort(34000); !errors.Is(err, ErrClosed) {
		t.Errorf("ReleasePort() error = %v, want ErrClosed", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		return nil
	})
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestReleasePort(t *testing.T) {
	got := make(chan *ams.Frame, 1)
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		got <- frame
		return nil
	})

	if err := c.ReleasePort(34000); err != nil {
		t.Fatalf("ReleasePort() error = %v", err)
	}

	select {
	case frame := <-got:
		if frame.Command != ams.FrameCommandPortClose {
			t.Errorf("command = 0x%04X, want port close", frame.Command)
		}
		if len(frame.Payload) != 2 || binary.LittleEndian.Uint16(frame.Payload) != 34000 {
			t.Errorf("payload = %v, want port 34000", frame.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("router never received the port close frame")
	}
}

func TestSetTimeout(t *testing.T) {
	c := pipeConn(t, time.Second, func(frame *ams.Frame) *ams.Frame {
		return nil
	})
	c.SetTimeout(3 * time.Second)
	if got := c.Timeout(); got != 3*time.Second {
		t.Errorf("Timeout() = %v, want %v", got, 3*time.Second)
	}
}
