package input

import (
	"sync"

	"github.com/juju/clock"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

// CameraAdapter consumes a camera decoder's stream of successfully decoded
// frames, submitting one event per decode. Stop tears the loop down without
// waiting for the decoder channel to close.
type CameraAdapter struct {
	sink  Sink
	clock clock.Clock

	once sync.Once
	stop chan struct{}
}

func NewCameraAdapter(sink Sink, clk clock.Clock) *CameraAdapter {
	return &CameraAdapter{
		sink:  sink,
		clock: clk,
		stop:  make(chan struct{}),
	}
}

// Run blocks consuming decoded frames until the channel closes or Stop is
// called. Empty decodes are skipped.
func (c *CameraAdapter) Run(decodes <-chan string) {
	for {
		select {
		case <-c.stop:
			return
		case code, ok := <-decodes:
			if !ok {
				return
			}
			if code == "" {
				continue
			}
			c.sink.Submit(domain.ScanEvent{
				Code:       code,
				Source:     domain.ScanSourceCamera,
				ReceivedAt: c.clock.Now(),
			})
		}
	}
}

// Stop ends the stream loop. Safe to call more than once.
func (c *CameraAdapter) Stop() {
	c.once.Do(func() { close(c.stop) })
}
