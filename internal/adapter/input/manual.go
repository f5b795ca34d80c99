package input

import (
	"strings"

	"github.com/juju/clock"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

// ManualAdapter normalizes hand-typed barcode entries. The UI re-focuses the
// field after every submission for continuous entry; this side has no state.
type ManualAdapter struct {
	sink  Sink
	clock clock.Clock
}

func NewManualAdapter(sink Sink, clk clock.Clock) *ManualAdapter {
	return &ManualAdapter{sink: sink, clock: clk}
}

// Submit sends one typed entry. Whitespace is trimmed; an empty entry is
// ignored. It reports whether the scan was accepted downstream.
func (m *ManualAdapter) Submit(text string) bool {
	code := strings.TrimSpace(text)
	if code == "" {
		return false
	}
	return m.sink.Submit(domain.ScanEvent{
		Code:       code,
		Source:     domain.ScanSourceManual,
		ReceivedAt: m.clock.Now(),
	})
}
