package ams

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame commands carried in the 6-byte AMS/TCP frame header. Command zero
// wraps an AMS packet; the nonzero commands are router-local requests that
// never leave the local machine.
const (
	FrameCommandAMS         uint16 = 0x0000
	FrameCommandPortConnect uint16 = 0x1000
	FrameCommandPortClose   uint16 = 0x1001
)

// Frame is the outermost AMS/TCP unit: a command word, a payload length and
// the payload itself.
type Frame struct {
	Command uint16
	Payload []byte
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("ams: read frame header: %w", err)
	}

	f := &Frame{Command: binary.LittleEndian.Uint16(hdr[0:2])}
	length := binary.LittleEndian.Uint32(hdr[2:6])
	if length > 0 {
		f.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("ams: read frame payload: %w", err)
		}
	}
	return f, nil
}

// WriteFrame writes one complete frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	buf := make([]byte, 6+len(f.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], f.Command)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(len(f.Payload)))
	copy(buf[6:], f.Payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("ams: write frame: %w", err)
	}
	return nil
}

// State flag bits for the StateFlags header field.
const (
	// StateFlagResponse is set on response packets (bit 0).
	StateFlagResponse uint16 = 0x0001

	// StateFlagADS must be set for ADS commands (bit 2).
	StateFlagADS uint16 = 0x0004
)

// headerSize is the fixed size of the AMS header following the frame header.
const headerSize = 32

// Header is the 32-byte AMS header. All multi-byte fields are little-endian.
type Header struct {
	Target     Addr   // destination endpoint (bytes 0-7)
	Source     Addr   // source endpoint (bytes 8-15)
	CommandID  uint16 // ADS command (bytes 16-17)
	StateFlags uint16 // request/response flags (bytes 18-19)
	DataLength uint32 // size of the ADS payload (bytes 20-23)
	ErrorCode  uint32 // AMS-level error (bytes 24-27)
	InvokeID   uint32 // request/response correlation (bytes 28-31)
}

// IsResponse reports whether the StateFlags mark this as a response packet.
func (h *Header) IsResponse() bool {
	return h.StateFlags&StateFlagResponse != 0
}

func (h *Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:6], h.Target.NetID[:])
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Target.Port))
	copy(buf[8:14], h.Source.NetID[:])
	binary.LittleEndian.PutUint16(buf[14:16], uint16(h.Source.Port))
	binary.LittleEndian.PutUint16(buf[16:18], h.CommandID)
	binary.LittleEndian.PutUint16(buf[18:20], h.StateFlags)
	binary.LittleEndian.PutUint32(buf[20:24], h.DataLength)
	binary.LittleEndian.PutUint32(buf[24:28], h.ErrorCode)
	binary.LittleEndian.PutUint32(buf[28:32], h.InvokeID)
	return buf
}

func (h *Header) unmarshal(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("ams: header requires %d bytes, got %d", headerSize, len(data))
	}
	copy(h.Target.NetID[:], data[0:6])
	h.Target.Port = Port(binary.LittleEndian.Uint16(data[6:8]))
	copy(h.Source.NetID[:], data[8:14])
	h.Source.Port = Port(binary.LittleEndian.Uint16(data[14:16]))
	h.CommandID = binary.LittleEndian.Uint16(data[16:18])
	h.StateFlags = binary.LittleEndian.Uint16(data[18:20])
	h.DataLength = binary.LittleEndian.Uint32(data[20:24])
	h.ErrorCode = binary.LittleEndian.Uint32(data[24:28])
	h.InvokeID = binary.LittleEndian.Uint32(data[28:32])
	return nil
}

// Packet is an AMS header plus its ADS payload.
type Packet struct {
	Header Header
	Data   []byte
}

// NewRequest builds a request packet addressed from source to target.
func NewRequest(target, source Addr, commandID uint16, invokeID uint32, data []byte) *Packet {
	return &Packet{
		Header: Header{
			Target:     target,
			Source:     source,
			CommandID:  commandID,
			StateFlags: StateFlagADS,
			DataLength: uint32(len(data)),
			InvokeID:   invokeID,
		},
		Data: data,
	}
}

// NewResponse builds a response packet answering req with the given payload.
func NewResponse(req *Packet, errorCode uint32, data []byte) *Packet {
	return &Packet{
		Header: Header{
			Target:     req.Header.Source,
			Source:     req.Header.Target,
			CommandID:  req.Header.CommandID,
			StateFlags: StateFlagADS | StateFlagResponse,
			DataLength: uint32(len(data)),
			ErrorCode:  errorCode,
			InvokeID:   req.Header.InvokeID,
		},
		Data: data,
	}
}

// Frame wraps the packet into an AMS frame ready for the wire.
func (p *Packet) Frame() *Frame {
	payload := make([]byte, headerSize+len(p.Data))
	copy(payload, p.Header.marshal())
	copy(payload[headerSize:], p.Data)
	return &Frame{Command: FrameCommandAMS, Payload: payload}
}

// ParsePacket decodes an AMS packet from a frame payload.
func ParsePacket(payload []byte) (*Packet, error) {
	var p Packet
	if err := p.Header.unmarshal(payload); err != nil {
		return nil, err
	}
	// unmarshal guarantees len(payload) >= headerSize; compare without
	// adding to DataLength so a huge announced length cannot wrap the sum.
	if p.Header.DataLength > uint32(len(payload))-headerSize {
		return nil, fmt.Errorf("ams: packet data truncated: header announces %d bytes, frame carries %d",
			p.Header.DataLength, len(payload)-headerSize)
	}
	if p.Header.DataLength > 0 {
		p.Data = make([]byte, p.Header.DataLength)
		copy(p.Data, payload[headerSize:headerSize+p.Header.DataLength])
	}
	return &p, nil
}
