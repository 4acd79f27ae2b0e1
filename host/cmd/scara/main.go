package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"scara/core"
	"scara/host/gpio"
	"scara/host/serial"
	"scara/standalone"
	"scara/standalone/config"
	"scara/standalone/machine"
	"scara/standalone/menu"
)

var (
	configPath = flag.String("config", "", "Machine config (.yaml or .json); built-in SCARA arm if empty")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	mode       = flag.String("mode", "", "Command protocol: menu or gcode (overrides config)")
	sim        = flag.Bool("sim", false, "Simulate GPIO instead of driving real lines")
	stdio      = flag.Bool("stdio", false, "Read commands from stdin instead of the serial port")
	dumpConfig = flag.Bool("dump-config", false, "Print the effective config as YAML and exit")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	core.SetDebugEnabled(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}

	if *dumpConfig {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			log.WithError(err).Fatal("dump config")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("scara")
	}
}

// loadConfig reads the config file (or the built-in arm) and applies the
// command line overrides
func loadConfig() (*standalone.MachineConfig, error) {
	var cfg *standalone.MachineConfig
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultSCARAConfig()
	}

	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	return cfg, config.Validate(cfg)
}

func run(ctx context.Context, cfg *standalone.MachineConfig) error {
	var driver core.GPIODriver
	var watcher *gpio.EndstopWatcher

	if *sim {
		simDriver := gpio.NewSimDriver()
		defer simDriver.Summary()
		driver = simDriver
	} else {
		periph, err := gpio.NewPeriphDriver()
		if err != nil {
			return err
		}
		defer periph.Close()
		driver = periph
	}
	core.SetGPIODriver(driver)

	m, err := machine.NewManagerWithConfig(cfg)
	if err != nil {
		return err
	}
	if err := m.Initialize(driver); err != nil {
		return errors.Wrap(err, "initialize machine")
	}

	if periph, ok := driver.(*gpio.PeriphDriver); ok {
		watcher = gpio.NewEndstopWatcher(periph, m.HaltAxis)
		for axis, es := range m.Endstops() {
			watcher.Add(axis, es)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.WithError(err).Error("endstop watcher")
			}
		}()
	}

	channel, err := openChannel(cfg)
	if err != nil {
		return err
	}
	defer channel.Close()

	// Abort a running motion and unblock the channel on shutdown
	go func() {
		<-ctx.Done()
		m.HaltAll()
		_ = channel.Close()
	}()

	if err := m.Start(); err != nil {
		return err
	}
	defer m.EnableMotors(false)
	if *verbose {
		defer core.DumpTimingRing()
	}

	log.WithFields(log.Fields{
		"mode":   cfg.Mode,
		"device": cfg.Serial.Device,
		"baud":   cfg.Serial.Baud,
		"sim":    *sim,
	}).Info("controller ready")

	switch cfg.Mode {
	case "gcode":
		err = serveGCode(ctx, channel, m)
	default:
		m.GetOutput()
		err = menu.NewServer(channel, m).Serve(ctx)
	}

	if ctx.Err() != nil {
		return nil
	}
	return err
}

type stdioChannel struct {
	io.Reader
	io.Writer
}

func (stdioChannel) Close() error { return nil }

func openChannel(cfg *standalone.MachineConfig) (io.ReadWriteCloser, error) {
	if *stdio {
		return stdioChannel{Reader: os.Stdin, Writer: os.Stdout}, nil
	}
	return serial.Open(serial.FromMachineConfig(cfg.Serial))
}

// serveGCode streams bytes into the manager and writes back its responses
func serveGCode(ctx context.Context, rw io.ReadWriter, m *machine.Manager) error {
	if _, err := rw.Write(m.GetOutput()); err != nil {
		return err
	}

	r := bufio.NewReader(rw)
	for ctx.Err() == nil {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if err := m.ProcessByte(b); err != nil {
			log.WithError(err).Warn("command failed")
		}
		if out := m.GetOutput(); out != nil {
			if _, err := rw.Write(out); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}
