package ads

import (
	"encoding/binary"
	"fmt"
)

// Request and response payloads are encoded little-endian. Both directions
// are implemented so that the same codec serves the client and the test
// emulator sitting on the other end of the channel.

type ReadRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
}

func (r *ReadRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	return buf, nil
}

func (r *ReadRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("ads: read request requires 12 bytes, got %d", len(data))
	}
	r.IndexGroup = binary.LittleEndian.Uint32(data[0:4])
	r.IndexOffset = binary.LittleEndian.Uint32(data[4:8])
	r.Length = binary.LittleEndian.Uint32(data[8:12])
	return nil
}

type ReadResponse struct {
	Result Error
	Data   []byte
}

func (r *ReadResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+len(r.Data))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Result))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(r.Data)))
	copy(buf[8:], r.Data)
	return buf, nil
}

func (r *ReadResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ads: read response requires at least 8 bytes, got %d", len(data))
	}
	r.Result = Error(binary.LittleEndian.Uint32(data[0:4]))
	length := binary.LittleEndian.Uint32(data[4:8])
	// Compare without adding to the announced length: a length near the
	// uint32 maximum would wrap the sum and slip past the guard.
	if length > uint32(len(data))-8 {
		return fmt.Errorf("ads: read response data truncated: announced %d bytes, got %d", length, len(data)-8)
	}
	r.Data = make([]byte, length)
	copy(r.Data, data[8:8+length])
	return nil
}

type WriteRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Data        []byte
}

func (w *WriteRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12+len(w.Data))
	binary.LittleEndian.PutUint32(buf[0:4], w.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], w.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(w.Data)))
	copy(buf[12:], w.Data)
	return buf, nil
}

func (w *WriteRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("ads: write request requires at least 12 bytes, got %d", len(data))
	}
	w.IndexGroup = binary.LittleEndian.Uint32(data[0:4])
	w.IndexOffset = binary.LittleEndian.Uint32(data[4:8])
	length := binary.LittleEndian.Uint32(data[8:12])
	if length > uint32(len(data))-12 {
		return fmt.Errorf("ads: write request data truncated: announced %d bytes, got %d", length, len(data)-12)
	}
	w.Data = make([]byte, length)
	copy(w.Data, data[12:12+length])
	return nil
}

type WriteResponse struct {
	Result Error
}

func (w *WriteResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(w.Result))
	return buf, nil
}

func (w *WriteResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("ads: write response requires 4 bytes, got %d", len(data))
	}
	w.Result = Error(binary.LittleEndian.Uint32(data[0:4]))
	return nil
}

type ReadWriteRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	ReadLength  uint32
	Data        []byte
}

func (r *ReadWriteRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 16+len(r.Data))
	binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
	binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], r.ReadLength)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(r.Data)))
	copy(buf[16:], r.Data)
	return buf, nil
}

func (r *ReadWriteRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("ads: read/write request requires at least 16 bytes, got %d", len(data))
	}
	r.IndexGroup = binary.LittleEndian.Uint32(data[0:4])
	r.IndexOffset = binary.LittleEndian.Uint32(data[4:8])
	r.ReadLength = binary.LittleEndian.Uint32(data[8:12])
	writeLength := binary.LittleEndian.Uint32(data[12:16])
	if writeLength > uint32(len(data))-16 {
		return fmt.Errorf("ads: read/write request data truncated: announced %d bytes, got %d", writeLength, len(data)-16)
	}
	r.Data = make([]byte, writeLength)
	copy(r.Data, data[16:16+writeLength])
	return nil
}

type ReadWriteResponse struct {
	Result Error
	Data   []byte
}

func (r *ReadWriteResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+len(r.Data))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Result))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(r.Data)))
	copy(buf[8:], r.Data)
	return buf, nil
}

func (r *ReadWriteResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ads: read/write response requires at least 8 bytes, got %d", len(data))
	}
	r.Result = Error(binary.LittleEndian.Uint32(data[0:4]))
	length := binary.LittleEndian.Uint32(data[4:8])
	if length > uint32(len(data))-8 {
		return fmt.Errorf("ads: read/write response data truncated: announced %d bytes, got %d", length, len(data)-8)
	}
	r.Data = make([]byte, length)
	copy(r.Data, data[8:8+length])
	return nil
}

// ReadState and ReadDeviceInfo requests carry no payload.

type ReadStateResponse struct {
	Result      Error
	State       State
	DeviceState uint16
}

func (r *ReadStateResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Result))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(r.State))
	binary.LittleEndian.PutUint16(buf[6:8], r.DeviceState)
	return buf, nil
}

func (r *ReadStateResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("ads: read state response requires 8 bytes, got %d", len(data))
	}
	r.Result = Error(binary.LittleEndian.Uint32(data[0:4]))
	r.State = State(binary.LittleEndian.Uint16(data[4:6]))
	r.DeviceState = binary.LittleEndian.Uint16(data[6:8])
	return nil
}

// deviceNameSize is the fixed width of the name field in a device info
// response; shorter names are null-padded.
const deviceNameSize = 16

type DeviceInfoResponse struct {
	Result       Error
	MajorVersion uint8
	MinorVersion uint8
	VersionBuild uint16
	DeviceName   string
}

func (r *DeviceInfoResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+deviceNameSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Result))
	buf[4] = r.MajorVersion
	buf[5] = r.MinorVersion
	binary.LittleEndian.PutUint16(buf[6:8], r.VersionBuild)
	name := r.DeviceName
	if len(name) > deviceNameSize {
		name = name[:deviceNameSize]
	}
	copy(buf[8:], name)
	return buf, nil
}

func (r *DeviceInfoResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 8+deviceNameSize {
		return fmt.Errorf("ads: device info response requires %d bytes, got %d", 8+deviceNameSize, len(data))
	}
	r.Result = Error(binary.LittleEndian.Uint32(data[0:4]))
	r.MajorVersion = data[4]
	r.MinorVersion = data[5]
	r.VersionBuild = binary.LittleEndian.Uint16(data[6:8])

	name := data[8 : 8+deviceNameSize]
	end := len(name)
	for i, b := range name {
		if b == 0 {
			end = i
			break
		}
	}
	r.DeviceName = string(name[:end])
	return nil
}
