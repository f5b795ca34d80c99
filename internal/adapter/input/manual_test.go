package input

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

func TestManual_TrimsAndSubmits(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	sink := newFakeSink()
	m := NewManualAdapter(sink, clk)

	if !m.Submit("  SP-001\n") {
		t.Fatal("expected submission to be accepted")
	}

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Code != "SP-001" {
		t.Errorf("expected trimmed code SP-001, got %q", events[0].Code)
	}
	if events[0].Source != domain.ScanSourceManual {
		t.Errorf("expected manual source, got %s", events[0].Source)
	}
}

func TestManual_EmptyEntryIgnored(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	sink := newFakeSink()
	m := NewManualAdapter(sink, clk)

	if m.Submit("   ") {
		t.Error("whitespace-only entry must be ignored")
	}
	if len(sink.all()) != 0 {
		t.Error("no event may be produced for an empty entry")
	}
}

func TestManual_ReportsDroppedScan(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	sink := newFakeSink()
	sink.accept = false
	m := NewManualAdapter(sink, clk)

	if m.Submit("SP-001") {
		t.Error("a dropped scan must be reported to the caller")
	}
}
