package tools

import "time"

// Catalog returns the built-in tool set for the motion-control backend. It is
// the fallback committed when capability discovery fails, and the authoritative
// set served by the bridge itself.
func Catalog() []Descriptor {
	return []Descriptor{
		{
			Name:        "ping",
			Description: "Check that the motion-control service is responding",
		},
		{
			Name:        "list_devices",
			Description: "List all motion-control devices currently known to the controller",
		},
		{
			Name:        "get_device_status",
			Description: "Read the status of one device (state, faults, enabled axes)",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
			},
		},
		{
			Name:        "get_position",
			Description: "Read the current position of one axis of a device",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
				{Name: "axis", Kind: KindString, Description: "Axis label, e.g. X or A1", Required: true},
			},
		},
		{
			Name:        "move_axis",
			Description: "Command an absolute move of one axis to a target position",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
				{Name: "axis", Kind: KindString, Description: "Axis label", Required: true},
				{Name: "position", Kind: KindNumber, Description: "Target position in device units", Required: true},
				{Name: "speed", Kind: KindNumber, Description: "Move speed in device units per second", Required: false},
			},
		},
		{
			Name:        "home_axis",
			Description: "Run the homing cycle for one axis",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
				{Name: "axis", Kind: KindString, Description: "Axis label", Required: true},
			},
		},
		{
			Name:        "stop_motion",
			Description: "Stop all motion on a device immediately",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
			},
		},
		{
			Name:        "set_speed",
			Description: "Set the default move speed for one axis",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
				{Name: "axis", Kind: KindString, Description: "Axis label", Required: true},
				{Name: "speed", Kind: KindNumber, Description: "Speed in device units per second", Required: true},
			},
		},
		{
			Name:        "read_io",
			Description: "Read the digital and analog I/O snapshot of a device",
			Params: []Param{
				{Name: "device", Kind: KindString, Description: "Device name as reported by list_devices", Required: true, EntityRef: true},
			},
		},
		{
			Name:        "start_discovery",
			Description: "Scan the network for motion-control devices; returns the discovered set",
			Params: []Param{
				{Name: "subnet", Kind: KindString, Description: "CIDR to scan, defaults to the controller's own subnet", Required: false},
			},
		},
	}
}

// endpoint binds a tool name to the backend call that implements it.
type endpoint struct {
	method string
	// path is a URL path template; {name} segments are substituted from the
	// call arguments.
	path string
	// bodyFields lists the argument names serialized as the JSON request
	// body. Arguments not used in the path and not listed here are sent as
	// query parameters.
	bodyFields []string
	// longRun, when set, chains a poll loop after a successful start call.
	longRun *longRunSpec
}

// longRunSpec describes how to poll a started operation to completion.
type longRunSpec struct {
	statusMethod string
	statusPath   string
	// done reports whether a status payload is terminal.
	done func(v interface{}) bool
	// timeout and interval may be overridden by dispatcher configuration.
	timeout  time.Duration
	interval time.Duration
}

// endpoints is the fixed mapping from tool name to backend call shape. It is
// resolved at startup and never edited at runtime.
var endpoints = map[string]endpoint{
	"ping":              {method: "GET", path: "/api/ping"},
	"list_devices":      {method: "GET", path: "/api/devices"},
	"get_device_status": {method: "GET", path: "/api/devices/{device}/status"},
	"get_position":      {method: "GET", path: "/api/devices/{device}/axes/{axis}/position"},
	"move_axis":         {method: "POST", path: "/api/devices/{device}/axes/{axis}/move", bodyFields: []string{"position", "speed"}},
	"home_axis":         {method: "POST", path: "/api/devices/{device}/axes/{axis}/home"},
	"stop_motion":       {method: "POST", path: "/api/devices/{device}/stop"},
	"set_speed":         {method: "POST", path: "/api/devices/{device}/axes/{axis}/speed", bodyFields: []string{"speed"}},
	"read_io":           {method: "GET", path: "/api/devices/{device}/io"},
	"start_discovery": {
		method: "POST", path: "/api/discovery/start", bodyFields: []string{"subnet"},
		longRun: &longRunSpec{
			statusMethod: "GET",
			statusPath:   "/api/discovery/status",
			done:         discoveryDone,
			timeout:      30 * time.Second,
			interval:     2 * time.Second,
		},
	},
}

// discoveryDone reports whether a discovery status payload contains at least
// one found device.
func discoveryDone(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	if state, ok := m["state"].(string); ok && state == "complete" {
		return true
	}
	devices, ok := m["devices"].([]interface{})
	return ok && len(devices) > 0
}
