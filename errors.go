package goadsym

import (
	"errors"
	"fmt"

	"github.com/mrpasztoradam/goadsym/internal/ads"
)

// Kind classifies an Error. It separates local precondition failures, which
// are detected before any transport call, from failures reported by the
// transport or the controller.
type Kind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown Kind = iota

	// KindPortClosed is an operation attempted while the session is closed.
	// Checked locally; the transport is never touched.
	KindPortClosed

	// KindConnection is a transport-level failure (dial, broken or closed
	// connection, request timeout).
	KindConnection

	// KindAddressResolution is a failed local address lookup during open.
	KindAddressResolution

	// KindSymbolResolution is a failed name-to-handle lookup.
	KindSymbolResolution

	// KindRead is a failed value read by handle.
	KindRead

	// KindWrite is a failed value write by handle.
	KindWrite

	// KindRelease is a failed handle release.
	KindRelease

	// KindDevice is a failed state, device-info or timeout operation.
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindPortClosed:
		return "port_closed"
	case KindConnection:
		return "connection"
	case KindAddressResolution:
		return "address_resolution"
	case KindSymbolResolution:
		return "symbol_resolution"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindRelease:
		return "release"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// ErrPortClosed is wrapped by every Error of KindPortClosed, so callers can
// test for the precondition with errors.Is regardless of the operation.
var ErrPortClosed = errors.New("goadsym: port not open")

// Error is the failure type returned by all session and symbol operations.
// Code carries the numeric ADS result when the failure was reported by the
// controller or router; it is zero for purely local failures.
type Error struct {
	Kind   Kind
	Op     string
	Symbol string // symbol name, when the operation had one
	Code   ads.Error
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("goadsym: %s failed", e.Op)
	if e.Symbol != "" {
		msg = fmt.Sprintf("goadsym: %s failed for symbol %q", e.Op, e.Symbol)
	}
	if e.Code.IsError() {
		return fmt.Sprintf("%s: %v (0x%04X)", msg, e.Code, uint32(e.Code))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Code.IsError() {
		return e.Code
	}
	return nil
}

// Retryable reports whether retrying the operation can reasonably succeed.
// Connection-level failures and transient router errors qualify; local
// precondition violations and symbol lookups do not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConnection:
		return true
	case KindPortClosed, KindSymbolResolution:
		return false
	}
	switch e.Code {
	case ads.ErrTargetPortNotFound, ads.ErrTargetMachineNotFound, ads.ErrClientSyncTimeout, ads.ErrDeviceNotReady:
		return true
	}
	return false
}

// CodeOf extracts the ADS result code from err, or zero if err carries none.
func CodeOf(err error) ads.Error {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var code ads.Error
	if errors.As(err, &code) {
		return code
	}
	return 0
}

// KindOf extracts the Kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func portClosedError(op string) *Error {
	return &Error{Kind: KindPortClosed, Op: op, Err: ErrPortClosed}
}

// remoteError builds an Error for a nonzero ADS result code.
func remoteError(kind Kind, op string, code ads.Error) *Error {
	return &Error{Kind: kind, Op: op, Code: code}
}

// wrapError builds an Error around a transport- or codec-level cause,
// lifting an embedded ADS code into Code when there is one.
func wrapError(kind Kind, op string, err error) *Error {
	var code ads.Error
	errors.As(err, &code)
	return &Error{Kind: kind, Op: op, Code: code, Err: err}
}

// withSymbol annotates err with the symbol name when err is an *Error that
// does not carry one yet.
func withSymbol(err error, symbol string) error {
	var e *Error
	if errors.As(err, &e) && e.Symbol == "" {
		e.Symbol = symbol
	}
	return err
}
