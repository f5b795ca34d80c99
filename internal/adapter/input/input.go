// Package input normalizes the three scan sources (camera decoder, HID
// keyboard-wedge scanner, manual entry) into ScanEvents. Adapters know
// nothing about resolution or transactions; they only feed a Sink.
package input

import "github.com/rl1809/scan-intake/internal/core/domain"

// Sink accepts normalized scan events. It reports false when the event was
// dropped, which adapters ignore beyond surfacing it to their caller.
type Sink interface {
	Submit(event domain.ScanEvent) bool
}
