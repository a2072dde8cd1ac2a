package goadsym

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/mrpasztoradam/goadsym/internal/ads"
)

// Handle is an opaque token the controller returns for a resolved symbol
// name. It stays valid until released or until the owning session closes;
// it may be read and written repeatedly in between.
type Handle uint32

// handleSize is the wire width of a symbol handle.
const handleSize = 4

// SymbolAccess provides named variable access over a shared PortSession:
// resolve a name to a handle, read/write values by handle, release the
// handle. Values are raw byte buffers; typed marshaling belongs to layers
// above this one. Safe for concurrent use; round trips serialize on the
// session.
type SymbolAccess struct {
	session *PortSession
	logger  Logger
	metrics Metrics
}

// NewSymbolAccess creates symbol access over the given session.
func NewSymbolAccess(session *PortSession) *SymbolAccess {
	return &SymbolAccess{
		session: session,
		logger:  session.logger,
		metrics: session.metrics,
	}
}

// Session returns the underlying session.
func (s *SymbolAccess) Session() *PortSession {
	return s.session
}

// GetHandle resolves a symbol name to a handle. The caller owns the handle
// and must release it with ReleaseHandle when done; handles left unreleased
// leak controller-side resources until the session closes.
func (s *SymbolAccess) GetHandle(ctx context.Context, name string) (Handle, error) {
	if name == "" {
		return 0, &Error{Kind: KindSymbolResolution, Op: "get_handle", Err: fmt.Errorf("symbol name is empty")}
	}

	// The controller expects the name null-terminated.
	nameBytes := append([]byte(name), 0)
	req := ads.ReadWriteRequest{
		IndexGroup: ads.IndexGroupHandleByName,
		ReadLength: handleSize,
		Data:       nameBytes,
	}
	payload, _ := req.MarshalBinary()

	data, err := s.session.request(ctx, "get_handle", KindSymbolResolution, ads.CmdReadWrite, payload, true)
	if err != nil {
		return 0, withSymbol(err, name)
	}

	var resp ads.ReadWriteResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		return 0, withSymbol(wrapError(KindSymbolResolution, "get_handle", err), name)
	}
	if resp.Result.IsError() {
		return 0, withSymbol(remoteError(KindSymbolResolution, "get_handle", resp.Result), name)
	}
	if len(resp.Data) < handleSize {
		return 0, withSymbol(wrapError(KindSymbolResolution, "get_handle",
			fmt.Errorf("handle response requires %d bytes, got %d", handleSize, len(resp.Data))), name)
	}

	handle := Handle(binary.LittleEndian.Uint32(resp.Data))
	s.metrics.HandleAcquired()
	s.logger.Debug("symbol handle acquired", "symbol", name, "handle", uint32(handle))
	return handle, nil
}

// ReleaseHandle frees a previously acquired handle. Unlike the other
// operations it performs no local open check and mirrors the raw call:
// on a closed session the channel rejects and the error carries
// KindRelease, not KindPortClosed. Releasing an unknown or already released
// handle is reported by the controller as a nonzero result code, not a
// client-side precondition violation; no local handle tracking exists.
func (s *SymbolAccess) ReleaseHandle(ctx context.Context, handle Handle) error {
	buf := make([]byte, handleSize)
	binary.LittleEndian.PutUint32(buf, uint32(handle))
	req := ads.WriteRequest{
		IndexGroup: ads.IndexGroupReleaseHandle,
		Data:       buf,
	}
	payload, _ := req.MarshalBinary()

	data, err := s.session.request(ctx, "release_handle", KindRelease, ads.CmdWrite, payload, false)
	if err != nil {
		return err
	}

	var resp ads.WriteResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		return wrapError(KindRelease, "release_handle", err)
	}
	if resp.Result.IsError() {
		return remoteError(KindRelease, "release_handle", resp.Result)
	}

	s.metrics.HandleReleased()
	s.logger.Debug("symbol handle released", "handle", uint32(handle))
	return nil
}

// ReadByHandle reads size bytes of the variable behind handle.
func (s *SymbolAccess) ReadByHandle(ctx context.Context, handle Handle, size uint32) ([]byte, error) {
	req := ads.ReadRequest{
		IndexGroup:  ads.IndexGroupValueByHandle,
		IndexOffset: uint32(handle),
		Length:      size,
	}
	payload, _ := req.MarshalBinary()

	data, err := s.session.request(ctx, "read_by_handle", KindRead, ads.CmdRead, payload, true)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		return nil, wrapError(KindRead, "read_by_handle", err)
	}
	if resp.Result.IsError() {
		return nil, remoteError(KindRead, "read_by_handle", resp.Result)
	}
	return resp.Data, nil
}

// WriteByHandle writes data to the variable behind handle.
func (s *SymbolAccess) WriteByHandle(ctx context.Context, handle Handle, data []byte) error {
	req := ads.WriteRequest{
		IndexGroup:  ads.IndexGroupValueByHandle,
		IndexOffset: uint32(handle),
		Data:        data,
	}
	payload, _ := req.MarshalBinary()

	respData, err := s.session.request(ctx, "write_by_handle", KindWrite, ads.CmdWrite, payload, true)
	if err != nil {
		return err
	}

	var resp ads.WriteResponse
	if err := resp.UnmarshalBinary(respData); err != nil {
		return wrapError(KindWrite, "write_by_handle", err)
	}
	if resp.Result.IsError() {
		return remoteError(KindWrite, "write_by_handle", resp.Result)
	}
	return nil
}

// ReadBySymbol reads size bytes of the named variable in one shot: it
// acquires a handle, reads, and releases the handle on the way out even
// when the read fails. The release is best-effort; its failure is logged
// and never masks the read result.
func (s *SymbolAccess) ReadBySymbol(ctx context.Context, name string, size uint32) ([]byte, error) {
	handle, err := s.GetHandle(ctx, name)
	if err != nil {
		return nil, err
	}
	defer s.releaseQuietly(ctx, name, handle)

	data, err := s.ReadByHandle(ctx, handle, size)
	if err != nil {
		return nil, withSymbol(err, name)
	}
	return data, nil
}

// WriteBySymbol writes data to the named variable in one shot, with the
// same acquire/use/release discipline as ReadBySymbol.
func (s *SymbolAccess) WriteBySymbol(ctx context.Context, name string, data []byte) error {
	handle, err := s.GetHandle(ctx, name)
	if err != nil {
		return err
	}
	defer s.releaseQuietly(ctx, name, handle)

	if err := s.WriteByHandle(ctx, handle, data); err != nil {
		return withSymbol(err, name)
	}
	return nil
}

func (s *SymbolAccess) releaseQuietly(ctx context.Context, name string, handle Handle) {
	if err := s.ReleaseHandle(ctx, handle); err != nil {
		s.logger.Warn("symbol handle release failed",
			"symbol", name, "handle", uint32(handle), "error", err)
	}
}
