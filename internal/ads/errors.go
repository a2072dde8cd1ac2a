package ads

import "fmt"

// Error is a numeric ADS result code. Zero means success; everything else is
// a device- or router-reported failure.
type Error uint32

const (
	ErrNoError               Error = 0x0000
	ErrInternal              Error = 0x0001
	ErrTargetPortNotFound    Error = 0x0006
	ErrTargetMachineNotFound Error = 0x0007
	ErrPortNotConnected      Error = 0x0018

	ErrDeviceError            Error = 0x0700
	ErrServiceNotSupported    Error = 0x0701
	ErrInvalidIndexGroup      Error = 0x0702
	ErrInvalidIndexOffset     Error = 0x0703
	ErrAccessDenied           Error = 0x0704
	ErrInvalidSize            Error = 0x0705
	ErrInvalidData            Error = 0x0706
	ErrDeviceNotReady         Error = 0x0707
	ErrSymbolNotFound         Error = 0x0710
	ErrSymbolVersionInvalid   Error = 0x0711
	ErrDeviceStateInvalid     Error = 0x0712
	ErrDeviceTransModeInvalid Error = 0x0713

	ErrClientSyncTimeout Error = 0x0745
)

func (e Error) Error() string {
	switch e {
	case ErrNoError:
		return "no error"
	case ErrInternal:
		return "internal error"
	case ErrTargetPortNotFound:
		return "target port not found"
	case ErrTargetMachineNotFound:
		return "target machine not found"
	case ErrPortNotConnected:
		return "port not connected"
	case ErrDeviceError:
		return "device error"
	case ErrServiceNotSupported:
		return "service is not supported by device"
	case ErrInvalidIndexGroup:
		return "invalid index group"
	case ErrInvalidIndexOffset:
		return "invalid index offset"
	case ErrAccessDenied:
		return "reading/writing not permitted"
	case ErrInvalidSize:
		return "parameter size not correct"
	case ErrInvalidData:
		return "invalid parameter value"
	case ErrDeviceNotReady:
		return "device is not in a ready state"
	case ErrSymbolNotFound:
		return "symbol not found"
	case ErrSymbolVersionInvalid:
		return "symbol version invalid"
	case ErrDeviceStateInvalid:
		return "device state invalid"
	case ErrDeviceTransModeInvalid:
		return "transmission mode not supported"
	case ErrClientSyncTimeout:
		return "sync request timed out"
	default:
		return fmt.Sprintf("ADS error 0x%04X", uint32(e))
	}
}

// IsError reports whether the code represents a failure.
func (e Error) IsError() bool {
	return e != ErrNoError
}
