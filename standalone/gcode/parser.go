package gcode

import (
	"scara/standalone"
)

// Parser handles G-code parsing
type Parser struct{}

// NewParser creates a new G-code parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine parses a single line of G-code. A line without a G/M/T word
// (e.g. "F600") yields a command with Type 0 and only parameters. A letter
// without a number ("G28 Z") is recorded with value 0.
func (p *Parser) ParseLine(line string) (*standalone.GCodeCommand, error) {
	if len(line) == 0 {
		return nil, nil
	}

	cmd := &standalone.GCodeCommand{
		Parameters: make(map[byte]float64),
	}

	i := skipSpace(line, 0)
	if i >= len(line) {
		return nil, nil
	}

	if line[i] == ';' || line[i] == '(' {
		cmd.Comment = line[i:]
		return cmd, nil
	}

	// Command word
	switch toUpper(line[i]) {
	case 'G', 'M', 'T':
		cmd.Type = toUpper(line[i])
		i++
		num, newPos := parseInt(line, i)
		if newPos > i {
			cmd.Number = num
			i = newPos
		}
	}

	for i < len(line) {
		i = skipSpace(line, i)
		if i >= len(line) {
			break
		}

		if line[i] == ';' || line[i] == '(' {
			cmd.Comment = line[i:]
			break
		}

		if !isLetter(line[i]) {
			i++
			continue
		}

		letter := toUpper(line[i])
		i++
		value, newPos := parseFloat(line, i)
		if newPos > i {
			i = newPos
		} else {
			value = 0
		}
		cmd.Parameters[letter] = value
	}

	return cmd, nil
}

// ParseNumber converts the leading decimal number of s, ignoring surrounding
// blanks and anything after the number. It never fails: text without a
// leading number yields 0.
func ParseNumber(s string) float64 {
	i := skipSpace(s, 0)
	v, end := parseFloat(s, i)
	if end <= i {
		return 0
	}
	return v
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// parseInt parses an integer from the string starting at pos
func parseInt(s string, pos int) (int, int) {
	if pos >= len(s) {
		return 0, pos
	}

	begin := pos
	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	start := pos
	value := 0
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + int(s[pos]-'0')
		pos++
	}

	if pos == start {
		return 0, begin
	}
	if negative {
		value = -value
	}
	return value, pos
}

// parseFloat parses a locale-free decimal number from the string starting at
// pos. It returns pos unchanged when no digits are found.
func parseFloat(s string, pos int) (float64, int) {
	if pos >= len(s) {
		return 0, pos
	}

	begin := pos
	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	value := 0.0
	digits := 0
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + float64(s[pos]-'0')
		pos++
		digits++
	}

	if pos < len(s) && s[pos] == '.' {
		pos++
		frac := 0.0
		divisor := 1.0
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			frac = frac*10 + float64(s[pos]-'0')
			divisor *= 10
			pos++
			digits++
		}
		value += frac / divisor
	}

	if digits == 0 {
		return 0, begin
	}
	if negative {
		value = -value
	}
	return value, pos
}

// isLetter checks if a byte is a letter
func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// toUpper converts a byte to uppercase
func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
