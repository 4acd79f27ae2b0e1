// Package menu implements the half-duplex single-letter command protocol of
// the arm controller: the controller sends a ready byte, the host answers
// with a command letter followed by its numeric arguments, one per line.
package menu

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"scara/core"
	"scara/standalone/gcode"
)

// ReadyByte is sent before every command is accepted
const ReadyByte = '1'

// Command letters
const (
	CmdMove = 'G'
	CmdFeed = 'F'
	CmdWait = 'W'
	CmdHome = 'H'
	CmdTool = 'M'
)

// maxNumberLen bounds one numeric argument; extra characters are dropped
const maxNumberLen = 32

// Controller is the motion surface driven by the menu
type Controller interface {
	MoveTo(target []float64) error
	SetFeed(feed float64) error
	Wait(seconds float64)
	Home(axis int) error
	Tool(code int) error
	AxisCount() int
}

// Server runs the protocol over one byte channel
type Server struct {
	r    *bufio.Reader
	w    io.Writer
	ctrl Controller
	log  *logrus.Entry

	afterCR bool
}

// NewServer creates a protocol server on rw
func NewServer(rw io.ReadWriter, ctrl Controller) *Server {
	return &Server{
		r:    bufio.NewReader(rw),
		w:    rw,
		ctrl: ctrl,
		log:  core.ComponentLogger("menu"),
	}
}

// Serve handles commands until ctx is cancelled or the channel fails. A clean
// end of input returns nil. Cancellation is only observed between commands;
// close the channel to abort a blocked read.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Next sends the ready byte and executes one command. Command failures are
// echoed to the host as "!<message>"; only channel errors are returned.
func (s *Server) Next() error {
	if _, err := s.w.Write([]byte{ReadyByte}); err != nil {
		return errors.Wrap(err, "write ready byte")
	}

	code, err := s.readCommand()
	if err != nil {
		return err
	}

	switch code {
	case CmdMove:
		target := make([]float64, s.ctrl.AxisCount())
		for i := range target {
			if target[i], err = s.readNumber(); err != nil {
				return err
			}
		}
		s.log.WithField("target", target).Debug("move")
		return s.report(s.ctrl.MoveTo(target))

	case CmdFeed:
		feed, err := s.readNumber()
		if err != nil {
			return err
		}
		return s.report(s.ctrl.SetFeed(feed))

	case CmdWait:
		seconds, err := s.readNumber()
		if err != nil {
			return err
		}
		s.ctrl.Wait(seconds)
		return nil

	case CmdHome:
		axis, err := s.readNumber()
		if err != nil {
			return err
		}
		return s.report(s.ctrl.Home(int(axis)))

	case CmdTool:
		return s.report(s.ctrl.Tool(0))

	default:
		s.log.WithField("code", string(code)).Debug("unknown command")
		return s.report(errors.Errorf("unknown command %q", code))
	}
}

// readCommand returns the next command letter, skipping line breaks and
// blanks, and consumes the line terminator that follows it
func (s *Server) readCommand() (byte, error) {
	for {
		b, err := s.readByte()
		if err != nil {
			return 0, err
		}
		if isBlank(b) {
			continue
		}

		next, err := s.readByte()
		switch {
		case err == io.EOF:
		case err != nil:
			return 0, err
		case !isTerminator(next):
			_ = s.r.UnreadByte()
		}
		return b, nil
	}
}

// readNumber reads one CR/LF-terminated ASCII number. An empty field or
// malformed text parses as 0.
func (s *Server) readNumber() (float64, error) {
	buf := make([]byte, 0, maxNumberLen)
	for {
		b, err := s.readByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				break
			}
			return 0, err
		}
		if isTerminator(b) {
			break
		}
		if len(buf) < maxNumberLen {
			buf = append(buf, b)
		}
	}
	return gcode.ParseNumber(string(buf)), nil
}

// readByte returns the next input byte, folding a CR LF pair into the CR
func (s *Server) readByte() (byte, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return 0, err
		}
		afterCR := s.afterCR
		s.afterCR = b == '\r'
		if b == '\n' && afterCR {
			continue
		}
		return b, nil
	}
}

// report echoes a command error to the host
func (s *Server) report(cmdErr error) error {
	if cmdErr == nil {
		return nil
	}
	s.log.WithError(cmdErr).Warn("command rejected")
	if _, err := io.WriteString(s.w, "!"+cmdErr.Error()+"\n"); err != nil {
		return errors.Wrap(err, "write error echo")
	}
	return nil
}

func isTerminator(b byte) bool {
	return b == '\r' || b == '\n'
}

func isBlank(b byte) bool {
	return isTerminator(b) || b == ' ' || b == '\t'
}
