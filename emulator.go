package goadsym

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mrpasztoradam/goadsym/internal/ads"
	"github.com/mrpasztoradam/goadsym/internal/ams"
	"github.com/mrpasztoradam/goadsym/internal/transport"
)

// Emulator is an in-memory Channel backed by a symbol store. It stands in
// for a router plus controller in tests and examples, and counts every call
// it receives so tests can assert which operations reached the transport.
type Emulator struct {
	mu sync.Mutex

	connected bool
	netID     ams.NetID
	localPort ams.Port

	// Device identity and state served to ReadDeviceInfo / ReadState.
	DeviceName   string
	MajorVersion uint8
	MinorVersion uint8
	VersionBuild uint16
	State        ads.State
	DeviceState  uint16

	// RegisterErr, when set, makes address resolution fail to exercise
	// the open rollback path.
	RegisterErr error

	symbols    map[string][]byte
	handles    map[uint32]string
	nextHandle uint32

	calls map[string]int
}

// NewEmulator creates an emulator with a running device and no symbols.
func NewEmulator() *Emulator {
	return &Emulator{
		netID:        ams.NetID{192, 168, 0, 1, 1, 1},
		localPort:    33000,
		DeviceName:   "goadsym-emu",
		MajorVersion: 3,
		MinorVersion: 1,
		VersionBuild: 4024,
		State:        ads.StateRun,
		symbols:      make(map[string][]byte),
		handles:      make(map[uint32]string),
		calls:        make(map[string]int),
	}
}

// SetSymbol defines a symbol and its backing buffer. The buffer length is
// the symbol's size; reads and writes beyond it fail with an invalid-size
// result, matching device behavior.
func (e *Emulator) SetSymbol(name string, value []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	e.symbols[name] = buf
}

// Symbol returns a copy of the symbol's current buffer.
func (e *Emulator) Symbol(name string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	value, ok := e.symbols[name]
	if !ok {
		return nil, false
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, true
}

// Calls returns how many times the named operation reached the emulator.
// Operation names: "connect", "disconnect", "register_port", and the ADS
// command names "read", "write", "read_write", "read_state",
// "read_device_info".
func (e *Emulator) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// LiveHandles returns the number of currently resolved, unreleased handles.
func (e *Emulator) LiveHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

func (e *Emulator) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["connect"]++
	e.connected = true
	return nil
}

func (e *Emulator) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["disconnect"]++
	e.connected = false
	// The controller discards all handles when the port goes away.
	e.handles = make(map[uint32]string)
	return nil
}

func (e *Emulator) RegisterPort(ctx context.Context) (ams.Addr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["register_port"]++
	if !e.connected {
		return ams.Addr{}, transport.ErrClosed
	}
	if e.RegisterErr != nil {
		return ams.Addr{}, e.RegisterErr
	}
	return ams.Addr{NetID: e.netID, Port: e.localPort}, nil
}

func (e *Emulator) SetTimeout(d time.Duration) {}

func (e *Emulator) Exchange(ctx context.Context, target ams.Addr, cmd ads.Command, payload []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls[cmd.String()]++
	if !e.connected {
		return nil, transport.ErrClosed
	}

	switch cmd {
	case ads.CmdReadState:
		resp := ads.ReadStateResponse{State: e.State, DeviceState: e.DeviceState}
		return resp.MarshalBinary()

	case ads.CmdReadDeviceInfo:
		resp := ads.DeviceInfoResponse{
			MajorVersion: e.MajorVersion,
			MinorVersion: e.MinorVersion,
			VersionBuild: e.VersionBuild,
			DeviceName:   e.DeviceName,
		}
		return resp.MarshalBinary()

	case ads.CmdReadWrite:
		var req ads.ReadWriteRequest
		if err := req.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return e.handleReadWrite(&req)

	case ads.CmdRead:
		var req ads.ReadRequest
		if err := req.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return e.handleRead(&req)

	case ads.CmdWrite:
		var req ads.WriteRequest
		if err := req.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return e.handleWrite(&req)

	default:
		return nil, ads.ErrServiceNotSupported
	}
}

func (e *Emulator) handleReadWrite(req *ads.ReadWriteRequest) ([]byte, error) {
	if req.IndexGroup != ads.IndexGroupHandleByName {
		resp := ads.ReadWriteResponse{Result: ads.ErrInvalidIndexGroup}
		return resp.MarshalBinary()
	}

	name := strings.TrimRight(string(req.Data), "\x00")
	if _, ok := e.symbols[name]; !ok {
		resp := ads.ReadWriteResponse{Result: ads.ErrSymbolNotFound}
		return resp.MarshalBinary()
	}

	e.nextHandle++
	e.handles[e.nextHandle] = name

	buf := make([]byte, 4)
	buf[0] = byte(e.nextHandle)
	buf[1] = byte(e.nextHandle >> 8)
	buf[2] = byte(e.nextHandle >> 16)
	buf[3] = byte(e.nextHandle >> 24)
	resp := ads.ReadWriteResponse{Data: buf}
	return resp.MarshalBinary()
}

func (e *Emulator) handleRead(req *ads.ReadRequest) ([]byte, error) {
	if req.IndexGroup != ads.IndexGroupValueByHandle {
		resp := ads.ReadResponse{Result: ads.ErrInvalidIndexGroup}
		return resp.MarshalBinary()
	}

	name, ok := e.handles[req.IndexOffset]
	if !ok {
		resp := ads.ReadResponse{Result: ads.ErrSymbolNotFound}
		return resp.MarshalBinary()
	}
	value := e.symbols[name]
	if req.Length > uint32(len(value)) {
		resp := ads.ReadResponse{Result: ads.ErrInvalidSize}
		return resp.MarshalBinary()
	}

	resp := ads.ReadResponse{Data: value[:req.Length]}
	return resp.MarshalBinary()
}

func (e *Emulator) handleWrite(req *ads.WriteRequest) ([]byte, error) {
	switch req.IndexGroup {
	case ads.IndexGroupReleaseHandle:
		if len(req.Data) < 4 {
			resp := ads.WriteResponse{Result: ads.ErrInvalidSize}
			return resp.MarshalBinary()
		}
		handle := uint32(req.Data[0]) | uint32(req.Data[1])<<8 | uint32(req.Data[2])<<16 | uint32(req.Data[3])<<24
		if _, ok := e.handles[handle]; !ok {
			resp := ads.WriteResponse{Result: ads.ErrSymbolNotFound}
			return resp.MarshalBinary()
		}
		delete(e.handles, handle)
		resp := ads.WriteResponse{}
		return resp.MarshalBinary()

	case ads.IndexGroupValueByHandle:
		name, ok := e.handles[req.IndexOffset]
		if !ok {
			resp := ads.WriteResponse{Result: ads.ErrSymbolNotFound}
			return resp.MarshalBinary()
		}
		value := e.symbols[name]
		if len(req.Data) > len(value) {
			resp := ads.WriteResponse{Result: ads.ErrInvalidSize}
			return resp.MarshalBinary()
		}
		copy(value, req.Data)
		resp := ads.WriteResponse{}
		return resp.MarshalBinary()

	default:
		resp := ads.WriteResponse{Result: ads.ErrInvalidIndexGroup}
		return resp.MarshalBinary()
	}
}
