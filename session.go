// Package goadsym is a Go client for symbol access on ADS automation
// controllers. A PortSession owns the single communication endpoint to one
// device; SymbolAccess layers the symbol-handle protocol on top of it.
package goadsym

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrpasztoradam/goadsym/internal/ads"
	"github.com/mrpasztoradam/goadsym/internal/ams"
)

// DefaultSubPort is the AMS port of the first PLC runtime.
const DefaultSubPort = ams.PortPLCRuntime1

// DefaultTimeout bounds blocking protocol calls unless configured otherwise.
const DefaultTimeout = 5 * time.Second

// Option is a functional option for configuring a PortSession.
type Option func(*sessionConfig) error

type sessionConfig struct {
	timeout time.Duration
	logger  Logger
	metrics Metrics
}

// WithTimeout sets the protocol timeout for blocking calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *sessionConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("goadsym: timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger sets the logger for the session.
func WithLogger(logger Logger) Option {
	return func(c *sessionConfig) error {
		if logger == nil {
			logger = DefaultLogger
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the session.
func WithMetrics(metrics Metrics) Option {
	return func(c *sessionConfig) error {
		if metrics == nil {
			metrics = DefaultMetrics
		}
		c.metrics = metrics
		return nil
	}
}

// PortSession manages the single communication endpoint to one controller.
// It is safe for concurrent use: all protocol operations are serialized on
// one mutex, because the underlying channel and the handle namespace are not
// safely interleavable. There is deliberately no process-wide instance; the
// application's composition root constructs one session and shares it by
// reference.
type PortSession struct {
	mu sync.Mutex
	ch Channel

	// port is the local AMS port assigned by the router, zero while the
	// session is closed. Kept atomic so Port() never blocks behind an
	// in-flight round trip.
	port atomic.Uint32

	addrMu sync.RWMutex
	target ams.Addr

	timeout time.Duration
	logger  Logger
	metrics Metrics
}

// NewPortSession creates a session over the given channel. The session
// starts closed; call Open before any other operation.
func NewPortSession(ch Channel, opts ...Option) (*PortSession, error) {
	if ch == nil {
		return nil, fmt.Errorf("goadsym: channel is required")
	}

	cfg := &sessionConfig{
		timeout: DefaultTimeout,
		logger:  DefaultLogger,
		metrics: DefaultMetrics,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &PortSession{
		ch:      ch,
		timeout: cfg.timeout,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}, nil
}

// DeviceState is the result of ReadState.
type DeviceState struct {
	State       ads.State
	DeviceState uint16
}

// DeviceInfo is the result of ReadDeviceInfo.
type DeviceInfo struct {
	Name         string
	MajorVersion uint8
	MinorVersion uint8
	VersionBuild uint16
}

// Version returns the device version as "major.minor.build".
func (d DeviceInfo) Version() string {
	return fmt.Sprintf("%d.%d.%d", d.MajorVersion, d.MinorVersion, d.VersionBuild)
}

// Open establishes the endpoint: it connects the channel, registers a local
// AMS port and stores the resolved device address with the requested
// sub-port. Opening an already-open session returns the existing port id
// without touching the transport. If address resolution fails the partial
// open is rolled back, so a half-open session is never observable.
// A subPort of zero selects DefaultSubPort.
func (s *PortSession) Open(ctx context.Context, subPort ams.Port) (uint32, error) {
	if subPort == 0 {
		subPort = DefaultSubPort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if port := s.port.Load(); port != 0 {
		s.logger.Info("ads port already open", "port", port)
		return port, nil
	}

	s.metrics.ConnectionAttempts()

	if err := s.ch.Connect(ctx); err != nil {
		s.metrics.ConnectionFailures()
		s.metrics.ErrorOccurred(KindConnection, "open")
		return 0, wrapError(KindConnection, "open", err)
	}

	local, err := s.ch.RegisterPort(ctx)
	if err != nil {
		// Roll back the partial open: transport connected but no valid
		// address means the session must end up closed, not half-open.
		if derr := s.ch.Disconnect(); derr != nil {
			s.logger.Warn("rollback disconnect failed", "error", derr)
		}
		s.port.Store(0)
		s.metrics.ConnectionFailures()
		s.metrics.ErrorOccurred(KindAddressResolution, "open")
		return 0, wrapError(KindAddressResolution, "open", err)
	}

	s.ch.SetTimeout(s.timeout)

	s.addrMu.Lock()
	s.target = ams.Addr{NetID: local.NetID, Port: subPort}
	s.addrMu.Unlock()
	s.port.Store(uint32(local.Port))

	s.metrics.ConnectionSuccesses()
	s.metrics.ConnectionActive(true)
	s.logger.Info("ads port open",
		"port", uint32(local.Port),
		"net_id", local.NetID.String(),
		"sub_port", uint16(subPort))

	return uint32(local.Port), nil
}

// Close closes the endpoint unconditionally and resets the port id to zero.
// Outstanding symbol handles are discarded by the controller and must not be
// reused after a reopen. Closing a closed session is a no-op.
func (s *PortSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ch.Disconnect()
	s.port.Store(0)
	s.metrics.ConnectionActive(false)

	if err != nil {
		s.metrics.ErrorOccurred(KindConnection, "close")
		return wrapError(KindConnection, "close", err)
	}
	s.logger.Info("ads port closed")
	return nil
}

// Port returns the local AMS port id, zero while closed. Lock-free.
func (s *PortSession) Port() uint32 {
	return s.port.Load()
}

// IsOpen reports whether the session is open.
func (s *PortSession) IsOpen() bool {
	return s.port.Load() != 0
}

// NetID returns the resolved local NetID, zero while closed.
func (s *PortSession) NetID() ams.NetID {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.target.NetID
}

// SubPort returns the device sub-port the session talks to.
func (s *PortSession) SubPort() ams.Port {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.target.Port
}

// SetSubPort retargets subsequent operations at another sub-port on the same
// device. The NetID is fixed for the lifetime of the open session.
func (s *PortSession) SetSubPort(subPort ams.Port) {
	s.addrMu.Lock()
	s.target.Port = subPort
	s.addrMu.Unlock()
}

// Address returns the device address as "netid:subport".
func (s *PortSession) Address() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.target.String()
}

// ReadState reads the connection state and device state.
func (s *PortSession) ReadState(ctx context.Context) (*DeviceState, error) {
	data, err := s.request(ctx, "read_state", KindDevice, ads.CmdReadState, nil, true)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadStateResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		return nil, wrapError(KindDevice, "read_state", err)
	}
	if resp.Result.IsError() {
		return nil, remoteError(KindDevice, "read_state", resp.Result)
	}

	return &DeviceState{State: resp.State, DeviceState: resp.DeviceState}, nil
}

// ReadDeviceInfo reads the device name and version.
func (s *PortSession) ReadDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	data, err := s.request(ctx, "read_device_info", KindDevice, ads.CmdReadDeviceInfo, nil, true)
	if err != nil {
		return nil, err
	}

	var resp ads.DeviceInfoResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		return nil, wrapError(KindDevice, "read_device_info", err)
	}
	if resp.Result.IsError() {
		return nil, remoteError(KindDevice, "read_device_info", resp.Result)
	}

	return &DeviceInfo{
		Name:         resp.DeviceName,
		MajorVersion: resp.MajorVersion,
		MinorVersion: resp.MinorVersion,
		VersionBuild: resp.VersionBuild,
	}, nil
}

// SetTimeout reconfigures the protocol timeout for subsequent blocking
// calls. Requires an open session.
func (s *PortSession) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return wrapError(KindDevice, "set_timeout", fmt.Errorf("timeout must be positive"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port.Load() == 0 {
		s.metrics.ErrorOccurred(KindPortClosed, "set_timeout")
		return portClosedError("set_timeout")
	}

	s.timeout = timeout
	s.ch.SetTimeout(timeout)
	s.logger.Debug("ads timeout set", "timeout", timeout)
	return nil
}

// Timeout returns the configured protocol timeout.
func (s *PortSession) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// request performs one serialized protocol round trip. With requireOpen the
// open precondition is enforced locally before the channel is touched;
// without it the call mirrors the raw transport behavior and lets the
// channel reject.
func (s *PortSession) request(ctx context.Context, op string, kind Kind, cmd ads.Command, payload []byte, requireOpen bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requireOpen && s.port.Load() == 0 {
		s.metrics.ErrorOccurred(KindPortClosed, op)
		return nil, portClosedError(op)
	}

	s.addrMu.RLock()
	target := s.target
	s.addrMu.RUnlock()

	s.metrics.OperationStarted(op)
	start := time.Now()
	data, err := s.ch.Exchange(ctx, target, cmd, payload)
	s.metrics.OperationCompleted(op, time.Since(start), err)

	if err != nil {
		s.metrics.ErrorOccurred(kind, op)
		s.logger.Debug("ads request failed", "operation", op, "error", err)
		return nil, wrapError(kind, op, err)
	}
	return data, nil
}
