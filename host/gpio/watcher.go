//go:build !tinygo

package gpio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"scara/core"
)

// edgePollTimeout bounds each WaitForEdge so cancellation is noticed
const edgePollTimeout = 50 * time.Millisecond

// EndstopWatcher waits for endstop edges and halts the matching axis while a
// motion runs, standing in for the endstop interrupt of the board firmware
type EndstopWatcher struct {
	driver   *PeriphDriver
	halt     func(axis int)
	endstops map[int]*core.Endstop
	log      *logrus.Entry
}

// NewEndstopWatcher creates a watcher that calls halt(axis) whenever that
// axis's endstop becomes asserted
func NewEndstopWatcher(driver *PeriphDriver, halt func(axis int)) *EndstopWatcher {
	return &EndstopWatcher{
		driver:   driver,
		halt:     halt,
		endstops: make(map[int]*core.Endstop),
		log:      core.ComponentLogger("endstop"),
	}
}

// Add watches the endstop of one axis
func (w *EndstopWatcher) Add(axis int, es *core.Endstop) {
	w.endstops[axis] = es
}

// Run blocks until ctx is done, one goroutine per endstop
func (w *EndstopWatcher) Run(ctx context.Context) error {
	waits := make(map[int]func(time.Duration) bool, len(w.endstops))
	for axis, es := range w.endstops {
		io, err := w.driver.pin(es.Pin)
		if err != nil {
			return err
		}
		waits[axis] = io.WaitForEdge
	}

	var wg sync.WaitGroup
	for axis, es := range w.endstops {
		wg.Add(1)
		go func(axis int, es *core.Endstop, wait func(time.Duration) bool) {
			defer wg.Done()
			for ctx.Err() == nil {
				if !wait(edgePollTimeout) || !es.Triggered() {
					continue
				}
				w.halt(axis)
				core.RecordTiming(core.EvtEndstop, uint8(axis), core.GetTime(), 0, 0)
				w.log.WithField("axis", axis).Info("endstop triggered")
			}
		}(axis, es, waits[axis])
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}
