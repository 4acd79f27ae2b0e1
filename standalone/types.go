package standalone

// AxisConfig represents configuration for a single stepper axis
type AxisConfig struct {
	Name           string  `json:"name" yaml:"name"`                         // "z", "arm", "forearm"
	Letter         string  `json:"letter" yaml:"letter"`                     // G-code word for this axis
	StepPin        string  `json:"step_pin" yaml:"step_pin"`                 // GPIO pin for step pulses
	DirPin         string  `json:"dir_pin" yaml:"dir_pin"`                   // GPIO pin for direction
	EnablePin      string  `json:"enable_pin" yaml:"enable_pin"`             // GPIO pin for enable (optional)
	DegreesPerStep float64 `json:"degrees_per_step" yaml:"degrees_per_step"` // Motor full-step angle
	Microstepping  int     `json:"microstepping" yaml:"microstepping"`       // Driver step division (1, 2, 4, ...)
	Reduction      float64 `json:"reduction" yaml:"reduction"`               // Motor degrees per joint unit / 1°
	MinPosition    float64 `json:"min_position" yaml:"min_position"`         // Soft limit (joint units)
	MaxPosition    float64 `json:"max_position" yaml:"max_position"`         // Soft limit (joint units)
	SpeedRPM       float64 `json:"speed_rpm" yaml:"speed_rpm"`               // Initial motor speed
	HomingStep     float64 `json:"homing_step" yaml:"homing_step"`           // Joint units per homing increment, sign = direction
	InvertDir      bool    `json:"invert_dir" yaml:"invert_dir"`             // Motor mounted reversed
	InvertEnable   bool    `json:"invert_enable" yaml:"invert_enable"`       // Enable line active high
}

// EndstopConfig represents configuration for an endstop
type EndstopConfig struct {
	Pin    string `json:"pin" yaml:"pin"`         // GPIO pin
	PullUp bool   `json:"pull_up" yaml:"pull_up"` // Enable pull-up
	Invert bool   `json:"invert" yaml:"invert"`   // Triggered when low
}

// CouplingConfig names a mechanical superposition between two axes: the
// target axis receives round(sourceSteps / Ratio) extra steps for every move
type CouplingConfig struct {
	Name   string  `json:"name" yaml:"name"`
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Ratio  float64 `json:"ratio" yaml:"ratio"`
}

// SerialConfig describes the command channel
type SerialConfig struct {
	Device      string `json:"device" yaml:"device"`
	Baud        int    `json:"baud" yaml:"baud"`
	ReadTimeout int    `json:"read_timeout_ms" yaml:"read_timeout_ms"`
}

// MachineConfig represents the complete machine configuration
type MachineConfig struct {
	Mode      string                   `json:"mode" yaml:"mode"` // "menu" or "gcode"
	Axes      []AxisConfig             `json:"axes" yaml:"axes"` // Declared order = command order
	Endstops  map[string]EndstopConfig `json:"endstops" yaml:"endstops"`
	Couplings []CouplingConfig         `json:"couplings" yaml:"couplings"`
	Serial    SerialConfig             `json:"serial" yaml:"serial"`

	MinPulseInterval float64 `json:"min_pulse_interval_us" yaml:"min_pulse_interval_us"` // Floor for half-period (µs)
	HomingMargin     float64 `json:"homing_margin" yaml:"homing_margin"`                 // Extra travel allowed while homing
	RequireHoming    bool    `json:"require_homing" yaml:"require_homing"`               // Reject motion until every endstop axis is homed
}

// AxisIndex returns the declared position of the named axis, or -1
func (c *MachineConfig) AxisIndex(name string) int {
	for i, a := range c.Axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// MachineState represents the current machine state
type MachineState struct {
	Positions    []float64 // Joint positions in declared axis order
	Homed        []bool    // Homing status per axis
	AbsoluteMode bool      // Absolute (G90) vs relative (G91) positioning
	FeedRate     float64   // Current feed (joint units per minute)
	MotorsOn     bool      // Enable lines asserted
}

// GCodeCommand represents a parsed G-code command
type GCodeCommand struct {
	Type       byte             // 'G', 'M', 'T'
	Number     int              // Command number (e.g., 0 for G0, 28 for G28)
	Parameters map[byte]float64 // Parameters (Z, A, B, F, P, S, etc.)
	Comment    string           // Comment text
}

// HasParameter checks if a parameter exists in the command
func (cmd *GCodeCommand) HasParameter(param byte) bool {
	_, ok := cmd.Parameters[param]
	return ok
}

// GetParameter gets a parameter value, or returns the default if not present
func (cmd *GCodeCommand) GetParameter(param byte, defaultValue float64) float64 {
	if val, ok := cmd.Parameters[param]; ok {
		return val
	}
	return defaultValue
}
