package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultSCARAConfigIsValid(t *testing.T) {
	cfg := DefaultSCARAConfig()
	require.NoError(t, Validate(cfg))

	require.Len(t, cfg.Axes, 3)
	assert.Equal(t, 0, cfg.AxisIndex("z"))
	assert.Equal(t, 1, cfg.AxisIndex("arm"))
	assert.Equal(t, 2, cfg.AxisIndex("forearm"))
	assert.Equal(t, -1, cfg.AxisIndex("wrist"))

	assert.InDelta(t, 7.2803, cfg.Axes[2].Reduction, 1e-4)
	assert.InDelta(t, 1.8788, cfg.Couplings[0].Ratio, 1e-4)
	assert.Equal(t, 38400, cfg.Serial.Baud)
}

func TestLoadConfigJSONDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"axes": [
			{"name": "z", "step_pin": "gpio2", "dir_pin": "gpio3", "max_position": 300},
			{"name": "arm", "letter": "A", "step_pin": "gpio4", "dir_pin": "gpio5",
			 "degrees_per_step": 0.9, "microstepping": 8, "reduction": 4.5}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultMode, cfg.Mode)
	assert.Equal(t, DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, DefaultDevice, cfg.Serial.Device)

	z := cfg.Axes[0]
	assert.Equal(t, "Z", z.Letter)
	assert.Equal(t, DefaultDegreesPerStep, z.DegreesPerStep)
	assert.Equal(t, 1, z.Microstepping)
	assert.Equal(t, 1.0, z.Reduction)
	assert.Equal(t, DefaultSpeedRPM, z.SpeedRPM)
	assert.Equal(t, 300.0, z.MaxPosition)

	arm := cfg.Axes[1]
	assert.Equal(t, 0.9, arm.DegreesPerStep)
	assert.Equal(t, 8, arm.Microstepping)
	assert.NoError(t, Validate(cfg))
}

func TestLoadYAML(t *testing.T) {
	cfg, err := LoadYAML([]byte(`
mode: gcode
serial:
  device: /dev/ttyACM0
  baud: 115200
axes:
  - name: z
    step_pin: gpio2
    dir_pin: gpio3
    min_position: 0
    max_position: 300
  - name: arm
    letter: A
    step_pin: gpio4
    dir_pin: gpio5
    invert_dir: true
couplings:
  - name: drag
    source: arm
    target: z
    ratio: 2
endstops:
  z:
    pin: gpio20
    pull_up: true
    invert: true
require_homing: true
`))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "gcode", cfg.Mode)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.True(t, cfg.Axes[1].InvertDir)
	assert.True(t, cfg.RequireHoming)
	assert.True(t, cfg.Endstops["z"].Invert)
	assert.Equal(t, 2.0, cfg.Couplings[0].Ratio)
}

func TestLoadMalformed(t *testing.T) {
	_, err := LoadConfig([]byte(`{"axes": [`))
	assert.Error(t, err)

	_, err = LoadYAML([]byte("axes: [\n"))
	assert.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultSCARAConfig()
	cfg.Mode = "turbo"
	cfg.Axes[0].StepPin = "pin-a"
	cfg.Axes[1].MinPosition = 10
	cfg.Axes[1].MaxPosition = -10
	cfg.Axes[2].Letter = "a"
	cfg.Couplings[0].Ratio = 0
	cfg.Couplings = append(cfg.Couplings, cfg.Couplings[0])
	cfg.Couplings[1].Source = "elbow"

	err := Validate(cfg)
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.GreaterOrEqual(t, len(errs), 6)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "step_pin")
	assert.Contains(t, err.Error(), "above max_position")
	assert.Contains(t, err.Error(), "duplicate letter")
	assert.Contains(t, err.Error(), "ratio must be nonzero")
	assert.Contains(t, err.Error(), "unknown source axis")
}

func TestValidateReservedLetters(t *testing.T) {
	for _, letter := range []string{"F", "p", "S", "X", "Y", "G", "M", "T"} {
		cfg := DefaultSCARAConfig()
		cfg.Axes[2].Letter = letter
		assert.ErrorContains(t, Validate(cfg), "reserved G-code word", "letter %s", letter)
	}

	cfg := DefaultSCARAConfig()
	cfg.Axes[2].Letter = "BC"
	assert.ErrorContains(t, Validate(cfg), "not a single letter")
}

func TestValidateNameDerivedLetter(t *testing.T) {
	// "forearm" would default to F, the feed word
	cfg, err := LoadConfig([]byte(`{"axes": [{"name": "forearm", "step_pin": "gpio2", "dir_pin": "gpio3"}]}`))
	require.NoError(t, err)
	assert.ErrorContains(t, Validate(cfg), "reserved G-code word")
}

func TestValidateNonFinite(t *testing.T) {
	cfg, err := LoadYAML([]byte(`
axes:
  - name: z
    step_pin: gpio2
    dir_pin: gpio3
    degrees_per_step: .nan
    reduction: .inf
`))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(cfg.Axes[0].DegreesPerStep))

	err = Validate(cfg)
	assert.ErrorContains(t, err, "degrees_per_step NaN must be a positive number")
	assert.ErrorContains(t, err, "reduction +Inf must be a positive number")

	cfg = DefaultSCARAConfig()
	cfg.Axes[1].MaxPosition = math.Inf(1)
	assert.ErrorContains(t, Validate(cfg), "non-finite value")
}

func TestValidateTooManyAxes(t *testing.T) {
	cfg := DefaultSCARAConfig()
	for i := 0; i < maxAxes; i++ {
		a := cfg.Axes[0]
		a.Name = a.Name + string(rune('a'+i))
		a.Letter = string(rune('C' + i))
		cfg.Axes = append(cfg.Axes, a)
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 10")
}

func TestValidateEndstop(t *testing.T) {
	cfg := DefaultSCARAConfig()
	cfg.Endstops["wrist"] = cfg.Endstops["z"]
	assert.ErrorContains(t, Validate(cfg), `endstop "wrist"`)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "arm.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
axes:
  - name: z
    step_pin: "2"
    dir_pin: "3"
`), 0o644))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "z", cfg.Axes[0].Name)

	jsonPath := filepath.Join(dir, "arm.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"axes": []}`), 0o644))
	_, err = Load(jsonPath)
	assert.ErrorContains(t, err, "no axes configured")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
