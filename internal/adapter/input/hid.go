package input

import (
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

// minIdleFlushLen is the shortest buffer the idle timer will flush. Shorter
// buffers are kept; a human typing two characters is not a scanner burst.
const minIdleFlushLen = 3

// HIDAdapter turns the keystroke stream of a keyboard-wedge scanner into
// scan events. Keystrokes accumulate in a rolling buffer that is flushed by
// an Enter key or by an idle gap, and modifier chords are swallowed so
// scanner-emulated shortcuts never reach the host.
type HIDAdapter struct {
	sink  Sink
	clock clock.Clock
	idle  time.Duration

	mu    sync.Mutex
	buf   []rune
	timer clock.Timer
}

type Keystroke struct {
	Key  string
	Ctrl bool
	Alt  bool
	Meta bool
}

func NewHIDAdapter(sink Sink, clk clock.Clock, idle time.Duration) *HIDAdapter {
	return &HIDAdapter{sink: sink, clock: clk, idle: idle}
}

// Key consumes one keystroke. It reports true when the keystroke was handled
// here and the caller should suppress its default effect.
func (h *HIDAdapter) Key(k Keystroke) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if k.Ctrl || k.Alt || k.Meta {
		return true
	}
	if k.Key == "Enter" {
		h.flushLocked()
		return true
	}
	if len([]rune(k.Key)) != 1 {
		// Arrows, function keys and the like are not barcode payload.
		return false
	}

	h.buf = append(h.buf, []rune(k.Key)[0])
	if h.timer == nil {
		h.timer = h.clock.AfterFunc(h.idle, h.idleFired)
	} else {
		h.timer.Reset(h.idle)
	}
	return true
}

func (h *HIDAdapter) idleFired() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) >= minIdleFlushLen {
		h.flushLocked()
	}
}

func (h *HIDAdapter) flushLocked() {
	if h.timer != nil {
		h.timer.Stop()
	}
	if len(h.buf) == 0 {
		return
	}
	code := string(h.buf)
	h.buf = nil
	h.sink.Submit(domain.ScanEvent{
		Code:       code,
		Source:     domain.ScanSourceHID,
		ReceivedAt: h.clock.Now(),
	})
}

// Reset drops any buffered keystrokes and stops the idle timer.
func (h *HIDAdapter) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.buf = nil
}
