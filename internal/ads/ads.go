// Package ads implements ADS (Automation Device Specification) commands and
// their binary payloads.
package ads

// Command identifies an ADS command carried in the AMS header.
type Command uint16

const (
	CmdInvalid        Command = 0x0000
	CmdReadDeviceInfo Command = 0x0001
	CmdRead           Command = 0x0002
	CmdWrite          Command = 0x0003
	CmdReadState      Command = 0x0004
	CmdReadWrite      Command = 0x0009
)

func (c Command) String() string {
	switch c {
	case CmdReadDeviceInfo:
		return "read_device_info"
	case CmdRead:
		return "read"
	case CmdWrite:
		return "write"
	case CmdReadState:
		return "read_state"
	case CmdReadWrite:
		return "read_write"
	default:
		return "invalid"
	}
}

// Index groups of the symbol-handle protocol. A handle is resolved from a
// name with a read-write on HandleByName, value access goes through
// ValueByHandle with the handle as index offset, and ReleaseHandle frees it.
const (
	IndexGroupHandleByName  uint32 = 0xF003
	IndexGroupValueByHandle uint32 = 0xF005
	IndexGroupReleaseHandle uint32 = 0xF006
)

// State represents the run state of an ADS device.
type State uint16

const (
	StateInvalid State = iota
	StateIdle
	StateReset
	StateInit
	StateStart
	StateRun
	StateStop
	StateSaveConfig
	StateLoadConfig
	StatePowerGood
	StateError
	StateShutdown
	StateSuspend
	StateResume
	StateConfig
	StateReconfig
)

func (s State) String() string {
	names := [...]string{
		"invalid", "idle", "reset", "init", "start", "run", "stop",
		"save_config", "load_config", "power_good", "error", "shutdown",
		"suspend", "resume", "config", "reconfig",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}
