package domain

import "fmt"

// Command verbs understood by the device firmware.
const (
	CmdSetMode      = "set_mode"
	CmdSetDevice    = "set_device"
	CmdSetInterval  = "set_interval"
	CmdSetTimestamp = "set_timestamp"
	CmdReboot       = "reboot"
)

// Sub-actuator names for set_device.
const (
	SubDeviceFan   = "fan"
	SubDeviceLight = "light"
	SubDeviceAC    = "ac"
)

// Command is the outbound wire envelope. Fire and forget: there is no
// acknowledgement channel, confirmation arrives indirectly through the
// device's next telemetry report.
type Command struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// CommandEncoder assigns session-scoped sequential IDs (cmd_001,
// cmd_002, ...). Single-writer; owned by the dispatcher.
type CommandEncoder struct {
	counter uint64
}

func (e *CommandEncoder) Encode(verb string, params map[string]any) Command {
	e.counter++
	if params == nil {
		params = map[string]any{}
	}
	return Command{
		ID:      fmt.Sprintf("cmd_%03d", e.counter),
		Command: verb,
		Params:  params,
	}
}

// Reset restarts the sequence, e.g. on logout/reload.
func (e *CommandEncoder) Reset() {
	e.counter = 0
}

func SetModeCommandParams(on bool) map[string]any {
	mode := 0
	if on {
		mode = 1
	}
	return map[string]any{"mode": mode}
}

func SetDeviceCommandParams(subDevice string, on bool) map[string]any {
	state := 0
	if on {
		state = 1
	}
	return map[string]any{"device": subDevice, "state": state}
}
