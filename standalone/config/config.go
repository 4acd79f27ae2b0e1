package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"scara/core"
	"scara/standalone"
)

// Defaults of the reference arm
const (
	DefaultMode           = "menu"
	DefaultDevice         = "/dev/ttyUSB0"
	DefaultBaud           = 38400
	DefaultDegreesPerStep = 1.8
	DefaultMicrostepping  = 4
	DefaultSpeedRPM       = 50.0
	DefaultHomingMargin   = 10.0
	DefaultHomingStep     = -0.5
)

// Gear train of the reference arm
const (
	ReductionZ        = 45.0
	ReductionArm      = 4.5
	ReductionForearm1 = 62.0 / 16.0
	ReductionForearm2 = 62.0 / 33.0
)

// reservedWords are the G-code words the interpreter reads itself; an axis
// cannot take one of them as its letter
const reservedWords = "FGMNPSTXY"

// LoadConfig parses a JSON configuration and returns a MachineConfig
func LoadConfig(jsonData []byte) (*standalone.MachineConfig, error) {
	var config standalone.MachineConfig

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, errors.Wrap(err, "parse json config")
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadYAML parses a YAML configuration and returns a MachineConfig
func LoadYAML(yamlData []byte) (*standalone.MachineConfig, error) {
	var config standalone.MachineConfig

	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, errors.Wrap(err, "parse yaml config")
	}

	applyDefaults(&config)
	return &config, nil
}

// Load reads a configuration file, picking the format from its extension
// (.json, otherwise YAML), and validates it
func Load(path string) (*standalone.MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var config *standalone.MachineConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		config, err = LoadConfig(data)
	default:
		config, err = LoadYAML(data)
	}
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return config, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *standalone.MachineConfig) {
	if config.Mode == "" {
		config.Mode = DefaultMode
	}
	if config.Serial.Device == "" {
		config.Serial.Device = DefaultDevice
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = DefaultBaud
	}
	if config.HomingMargin == 0 {
		config.HomingMargin = DefaultHomingMargin
	}

	for i := range config.Axes {
		axis := &config.Axes[i]
		if axis.DegreesPerStep == 0 {
			axis.DegreesPerStep = DefaultDegreesPerStep
		}
		if axis.Microstepping == 0 {
			axis.Microstepping = 1
		}
		if axis.Reduction == 0 {
			axis.Reduction = 1
		}
		if axis.SpeedRPM == 0 {
			axis.SpeedRPM = DefaultSpeedRPM
		}
		if axis.HomingStep == 0 {
			axis.HomingStep = DefaultHomingStep
		}
		if axis.Letter == "" && axis.Name != "" {
			axis.Letter = strings.ToUpper(axis.Name[:1])
		}
	}
}

// Validate checks the configuration and reports every problem at once
func Validate(config *standalone.MachineConfig) error {
	var err error

	switch config.Mode {
	case "menu", "gcode":
	default:
		err = multierr.Append(err, errors.Errorf("unknown mode %q", config.Mode))
	}

	if len(config.Axes) == 0 {
		err = multierr.Append(err, errors.New("no axes configured"))
	}
	if len(config.Axes) > maxAxes {
		err = multierr.Append(err, errors.Errorf("%d axes configured, at most %d supported", len(config.Axes), maxAxes))
	}

	names := make(map[string]bool)
	letters := make(map[string]bool)
	for i, axis := range config.Axes {
		err = multierr.Append(err, validateAxis(i, axis))
		if axis.Name != "" {
			if names[axis.Name] {
				err = multierr.Append(err, errors.Errorf("axis %d: duplicate name %q", i, axis.Name))
			}
			names[axis.Name] = true
		}
		letter := strings.ToUpper(axis.Letter)
		if letter != "" {
			if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
				err = multierr.Append(err, errors.Errorf("axis %d: letter %q is not a single letter", i, axis.Letter))
			} else if strings.Contains(reservedWords, letter) {
				err = multierr.Append(err, errors.Errorf("axis %d: letter %q is a reserved G-code word", i, axis.Letter))
			}
			if letters[letter] {
				err = multierr.Append(err, errors.Errorf("axis %d: duplicate letter %q", i, axis.Letter))
			}
			letters[letter] = true
		}
	}

	for _, c := range config.Couplings {
		if config.AxisIndex(c.Source) < 0 {
			err = multierr.Append(err, errors.Errorf("coupling %q: unknown source axis %q", c.Name, c.Source))
		}
		if config.AxisIndex(c.Target) < 0 {
			err = multierr.Append(err, errors.Errorf("coupling %q: unknown target axis %q", c.Name, c.Target))
		}
		if c.Source == c.Target {
			err = multierr.Append(err, errors.Errorf("coupling %q: axis coupled to itself", c.Name))
		}
		if c.Ratio == 0 {
			err = multierr.Append(err, errors.Errorf("coupling %q: ratio must be nonzero", c.Name))
		}
	}

	for name, es := range config.Endstops {
		if config.AxisIndex(name) < 0 {
			err = multierr.Append(err, errors.Errorf("endstop %q: no such axis", name))
		}
		if _, perr := core.LookupPin(es.Pin); perr != nil {
			err = multierr.Append(err, errors.Wrapf(perr, "endstop %q", name))
		}
	}

	if config.MinPulseInterval < 0 {
		err = multierr.Append(err, errors.New("min_pulse_interval_us must not be negative"))
	}
	if config.Serial.Baud < 0 {
		err = multierr.Append(err, errors.Errorf("invalid baud rate %d", config.Serial.Baud))
	}

	return err
}

// maxAxes mirrors the registry capacity without importing the engine
const maxAxes = 10

func validateAxis(i int, axis standalone.AxisConfig) error {
	var err error
	if axis.Name == "" {
		err = multierr.Append(err, errors.Errorf("axis %d: missing name", i))
	}
	if _, perr := core.LookupPin(axis.StepPin); perr != nil {
		err = multierr.Append(err, errors.Wrapf(perr, "axis %d step_pin", i))
	}
	if _, perr := core.LookupPin(axis.DirPin); perr != nil {
		err = multierr.Append(err, errors.Wrapf(perr, "axis %d dir_pin", i))
	}
	if axis.EnablePin != "" {
		if _, perr := core.LookupPin(axis.EnablePin); perr != nil {
			err = multierr.Append(err, errors.Wrapf(perr, "axis %d enable_pin", i))
		}
	}
	if axis.MinPosition > axis.MaxPosition {
		err = multierr.Append(err, errors.Errorf("axis %d: min_position %.3f above max_position %.3f",
			i, axis.MinPosition, axis.MaxPosition))
	}
	if !finitePositive(axis.DegreesPerStep) {
		err = multierr.Append(err, errors.Errorf("axis %d: degrees_per_step %v must be a positive number", i, axis.DegreesPerStep))
	}
	if !finitePositive(axis.Reduction) {
		err = multierr.Append(err, errors.Errorf("axis %d: reduction %v must be a positive number", i, axis.Reduction))
	}
	for _, v := range []float64{axis.MinPosition, axis.MaxPosition, axis.SpeedRPM, axis.HomingStep} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			err = multierr.Append(err, errors.Errorf("axis %d: non-finite value %v", i, v))
			break
		}
	}
	if axis.Microstepping < 0 {
		err = multierr.Append(err, errors.Errorf("axis %d: negative microstepping", i))
	}
	return err
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// DefaultSCARAConfig returns the configuration of the reference three-joint
// arm: a Z column, the arm and the forearm geared through the arm's stage
func DefaultSCARAConfig() *standalone.MachineConfig {
	return &standalone.MachineConfig{
		Mode: DefaultMode,
		Axes: []standalone.AxisConfig{
			{
				Name:           "z",
				Letter:         "Z",
				StepPin:        "gpio2",
				DirPin:         "gpio3",
				EnablePin:      "gpio8",
				DegreesPerStep: DefaultDegreesPerStep,
				Microstepping:  DefaultMicrostepping,
				Reduction:      ReductionZ,
				MinPosition:    0,
				MaxPosition:    300,
				SpeedRPM:       DefaultSpeedRPM,
				HomingStep:     DefaultHomingStep,
			},
			{
				Name:           "arm",
				Letter:         "A",
				StepPin:        "gpio4",
				DirPin:         "gpio5",
				EnablePin:      "gpio8",
				DegreesPerStep: DefaultDegreesPerStep,
				Microstepping:  DefaultMicrostepping,
				Reduction:      ReductionArm,
				MinPosition:    -190,
				MaxPosition:    190,
				SpeedRPM:       DefaultSpeedRPM,
				HomingStep:     DefaultHomingStep,
			},
			{
				Name:           "forearm",
				Letter:         "B",
				StepPin:        "gpio6",
				DirPin:         "gpio7",
				EnablePin:      "gpio8",
				DegreesPerStep: DefaultDegreesPerStep,
				Microstepping:  DefaultMicrostepping,
				Reduction:      ReductionForearm1 * ReductionForearm2,
				MinPosition:    -280,
				MaxPosition:    280,
				SpeedRPM:       DefaultSpeedRPM,
				HomingStep:     DefaultHomingStep,
			},
		},
		Endstops: map[string]standalone.EndstopConfig{
			"z": {Pin: "gpio20", PullUp: true, Invert: true},
		},
		Couplings: []standalone.CouplingConfig{
			{Name: "forearm_superposition", Source: "arm", Target: "forearm", Ratio: ReductionForearm2},
		},
		Serial: standalone.SerialConfig{
			Device: DefaultDevice,
			Baud:   DefaultBaud,
		},
		MinPulseInterval: 0,
		HomingMargin:     DefaultHomingMargin,
	}
}
