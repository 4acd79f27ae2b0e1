package gcode

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"scara/core"
	"scara/standalone"
)

// ErrCartesianUnsupported rejects X/Y words: the controller only moves joints
var ErrCartesianUnsupported = errors.New("cartesian X/Y moves are not supported, program joint letters")

// Machine is the motion surface the interpreter drives
type Machine interface {
	Move(displacement []float64) error
	MoveTo(target []float64) error
	SetFeed(feed float64) error
	Wait(seconds float64)
	Home(axis int) error
	HomeAll() error
	SetPosition(axis int, pos float64)
	Positions() []float64
	EnableMotors(on bool)
	Tool(code int) error
}

// Interpreter executes G-code commands
type Interpreter struct {
	machine  Machine
	letters  map[byte]int // G-code word -> axis index
	names    []byte       // axis letters in declared order
	absolute bool
	respond  func(string)
	log      *logrus.Entry
}

// NewInterpreter creates an interpreter that maps the configured axis letters
// onto machine. respond receives report lines (M114) and may be nil.
func NewInterpreter(config *standalone.MachineConfig, machine Machine, respond func(string)) *Interpreter {
	interp := &Interpreter{
		machine:  machine,
		letters:  make(map[byte]int),
		absolute: true,
		respond:  respond,
		log:      core.ComponentLogger("gcode"),
	}
	for i, axis := range config.Axes {
		letter := byte('?')
		if axis.Letter != "" {
			letter = toUpper(axis.Letter[0])
			interp.letters[letter] = i
		}
		interp.names = append(interp.names, letter)
	}
	return interp
}

// AbsoluteMode reports whether G90 (true) or G91 is active
func (interp *Interpreter) AbsoluteMode() bool {
	return interp.absolute
}

// Execute executes a parsed G-code command
func (interp *Interpreter) Execute(cmd *standalone.GCodeCommand) error {
	if cmd == nil {
		return nil
	}

	switch cmd.Type {
	case 'G':
		return interp.executeG(cmd)
	case 'M':
		return interp.executeM(cmd)
	case 'T':
		return interp.machine.Tool(cmd.Number)
	case 0:
		// Bare feed word
		if cmd.HasParameter('F') {
			return interp.machine.SetFeed(cmd.GetParameter('F', 0))
		}
	}

	return nil
}

// executeG handles G-codes
func (interp *Interpreter) executeG(cmd *standalone.GCodeCommand) error {
	switch cmd.Number {
	case 0, 1: // G0/G1 - Joint move
		return interp.doMove(cmd)
	case 4: // G4 - Dwell, P in milliseconds or S in seconds
		if cmd.HasParameter('P') {
			interp.machine.Wait(cmd.GetParameter('P', 0) / 1000)
		} else {
			interp.machine.Wait(cmd.GetParameter('S', 0))
		}
	case 28: // G28 - Home
		return interp.doHome(cmd)
	case 90: // G90 - Absolute positioning
		interp.absolute = true
	case 91: // G91 - Relative positioning
		interp.absolute = false
	case 92: // G92 - Set position
		interp.doSetPosition(cmd)
	default:
		interp.log.WithField("code", fmt.Sprintf("G%d", cmd.Number)).Debug("ignoring unsupported command")
	}

	return nil
}

// executeM handles M-codes
func (interp *Interpreter) executeM(cmd *standalone.GCodeCommand) error {
	switch cmd.Number {
	case 3, 5: // M3/M5 - Gripper close/open
		return interp.machine.Tool(cmd.Number)
	case 17: // M17 - Enable motors
		interp.machine.EnableMotors(true)
	case 18, 84: // M18/M84 - Disable motors
		interp.machine.EnableMotors(false)
	case 114: // M114 - Report position
		interp.reportPosition()
	default:
		interp.log.WithField("code", fmt.Sprintf("M%d", cmd.Number)).Debug("ignoring unsupported command")
	}

	return nil
}

// doMove executes a coordinated joint move (G0/G1). Axes not named keep
// their position.
func (interp *Interpreter) doMove(cmd *standalone.GCodeCommand) error {
	if cmd.HasParameter('X') || cmd.HasParameter('Y') {
		return ErrCartesianUnsupported
	}

	if cmd.HasParameter('F') {
		if err := interp.machine.SetFeed(cmd.GetParameter('F', 0)); err != nil {
			return err
		}
	}

	current := interp.machine.Positions()
	target := make([]float64, len(current))
	copy(target, current)

	moved := false
	for letter, axis := range interp.letters {
		if axis >= len(target) || !cmd.HasParameter(letter) {
			continue
		}
		value := cmd.GetParameter(letter, 0)
		if interp.absolute {
			target[axis] = value
		} else {
			target[axis] = current[axis] + value
		}
		moved = true
	}

	if !moved {
		return nil
	}
	return interp.machine.MoveTo(target)
}

// doHome executes homing (G28). Without axis words every axis that has an
// endstop is homed.
func (interp *Interpreter) doHome(cmd *standalone.GCodeCommand) error {
	named := false
	for i, letter := range interp.names {
		if !cmd.HasParameter(letter) {
			continue
		}
		named = true
		if err := interp.machine.Home(i); err != nil {
			return err
		}
	}
	if named {
		return nil
	}
	return interp.machine.HomeAll()
}

// doSetPosition overwrites positions without moving (G92)
func (interp *Interpreter) doSetPosition(cmd *standalone.GCodeCommand) {
	for letter, axis := range interp.letters {
		if cmd.HasParameter(letter) {
			interp.machine.SetPosition(axis, cmd.GetParameter(letter, 0))
		}
	}
}

// reportPosition answers M114 as "Z:0.000 A:0.000 B:0.000"
func (interp *Interpreter) reportPosition() {
	if interp.respond == nil {
		return
	}
	pos := interp.machine.Positions()
	parts := make([]string, 0, len(pos))
	for i, p := range pos {
		letter := byte('?')
		if i < len(interp.names) {
			letter = interp.names[i]
		}
		parts = append(parts, fmt.Sprintf("%c:%.3f", letter, p))
	}
	interp.respond(strings.Join(parts, " ") + "\n")
}
