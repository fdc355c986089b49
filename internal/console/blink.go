package console

import (
	"sync"
	"time"
)

// DefaultBlinkInterval is the phase flip period for alert blinking.
const DefaultBlinkInterval = 500 * time.Millisecond

// blinker drives the shared alert blink: a boolean that flips on a fixed
// interval while any blink-worthy state exists. At most one ticker task
// runs at a time; start and stop are idempotent so the lifecycle can be
// driven from a single decision point.
type blinker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	on   bool
}

func newBlinker(interval time.Duration) *blinker {
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	return &blinker{interval: interval}
}

// active reports whether the ticker task is running.
func (b *blinker) active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop != nil
}

// phase returns the current blink phase; always false while inactive.
func (b *blinker) phase() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

// start launches the ticker task if it is not already running.
func (b *blinker) start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return
	}
	stop := make(chan struct{})
	b.stop = stop
	b.on = true
	go b.run(stop)
}

// halt cancels the ticker task and resets the phase.
func (b *blinker) halt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop == nil {
		return
	}
	close(b.stop)
	b.stop = nil
	b.on = false
}

func (b *blinker) run(stop chan struct{}) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			if b.stop != nil {
				b.on = !b.on
			}
			b.mu.Unlock()
		}
	}
}
