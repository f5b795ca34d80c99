package domain

import "time"

type ScanSource string

const (
	ScanSourceCamera ScanSource = "camera"
	ScanSourceHID    ScanSource = "hid"
	ScanSourceManual ScanSource = "manual"
)

// ScanEvent is a normalized barcode read from any input adapter. It is
// created once by an adapter and consumed once by the scan queue.
type ScanEvent struct {
	Code       string
	Source     ScanSource
	ReceivedAt time.Time
}
