package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/rl1809/scan-intake/internal/core/domain"
	"github.com/rl1809/scan-intake/internal/obs"
	"github.com/rl1809/scan-intake/internal/port"
)

var (
	ErrValidation        = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid transition")
)

type State string

const (
	StateScan        State = "scan"
	StateMenu        State = "menu"
	StateTransaction State = "transaction"
)

type MenuAction string

const (
	MenuActionUsage       MenuAction = "usage"
	MenuActionRestock     MenuAction = "restock"
	MenuActionViewDetails MenuAction = "view_details"
)

type SessionConfig struct {
	// Debounce is re-armed on every accepted scan; the queue flushes when it
	// fires or when FlushThreshold scans are queued, whichever happens first.
	Debounce       time.Duration
	FlushThreshold int

	// RecoveryDelay is how long the gate stays closed after a failed
	// resolution before new scans are accepted again.
	RecoveryDelay time.Duration

	// BatchDelay is the pause between consecutive batch-mode resolutions.
	BatchDelay time.Duration
}

// Session is one technician's scan pipeline: the FIFO scan queue, the
// single-flight gate, the resolution cache and the Scan/Menu/Transaction
// state machine all live here and are shared with no other component.
type Session struct {
	resolver  *Resolver
	store     port.PartStore
	cache     port.ResolutionCache
	collector BatchCollector
	clock     clock.Clock
	tech      domain.Technician
	cfg       SessionConfig

	mu         sync.Mutex
	state      State
	gateOpen   bool
	batchMode  bool
	queue      []domain.ScanEvent
	flushing   bool
	debounce   clock.Timer
	pending    *domain.PendingTransaction
	generation int
	notice     string
}

func NewSession(resolver *Resolver, store port.PartStore, cache port.ResolutionCache,
	collector BatchCollector, clk clock.Clock, tech domain.Technician, cfg SessionConfig) *Session {
	if cfg.FlushThreshold < 1 {
		cfg.FlushThreshold = 1
	}
	return &Session{
		resolver:  resolver,
		store:     store,
		cache:     cache,
		collector: collector,
		clock:     clk,
		tech:      tech,
		cfg:       cfg,
		state:     StateScan,
		gateOpen:  true,
	}
}

func (s *Session) Technician() domain.Technician {
	return s.tech
}

// Collector returns the batch sink this session appends to. Collectors are
// per-session; one technician's batch checkout never sees another's scans.
func (s *Session) Collector() BatchCollector {
	return s.collector
}

// Submit enqueues a scan event. It reports false when the single-flight gate
// is closed and the session is not in batch mode; the event is then dropped.
func (s *Session) Submit(event domain.ScanEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gateOpen && !s.batchMode {
		obs.Logger.Debug("scan rejected, gate closed", "barcode", event.Code, "source", event.Source)
		return false
	}

	s.queue = append(s.queue, event)
	if !s.batchMode {
		s.gateOpen = false
	}
	obs.Logger.Info("scan accepted", "barcode", event.Code, "source", event.Source, "queued", len(s.queue))

	if len(s.queue) >= s.cfg.FlushThreshold {
		if s.debounce != nil {
			s.debounce.Stop()
		}
		s.startFlushLocked()
		return true
	}

	if s.debounce == nil {
		s.debounce = s.clock.AfterFunc(s.cfg.Debounce, s.debounceFired)
	} else {
		s.debounce.Reset(s.cfg.Debounce)
	}
	return true
}

func (s *Session) debounceFired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startFlushLocked()
}

func (s *Session) startFlushLocked() {
	if s.flushing || len(s.queue) == 0 {
		return
	}
	s.flushing = true
	go s.flush(s.generation)
}

// flush drains the queue strictly FIFO. In non-batch mode it stops at the
// first successful resolution and drops whatever is still queued; in batch
// mode every item is resolved and appended to the collector. A flush started
// under one generation never applies results after the session was reset.
func (s *Session) flush(gen int) {
	ctx := context.Background()
	for {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		batch := s.batchMode
		s.mu.Unlock()

		part, err := s.resolver.Resolve(ctx, event.Code)

		s.mu.Lock()
		if s.generation != gen {
			// Reset happened while the lookup was in flight; the result no
			// longer matches what the technician sees.
			s.mu.Unlock()
			return
		}

		if err != nil {
			s.notice = resolutionNotice(err, event.Code)
			obs.Logger.Warn("scan resolution failed", "barcode", event.Code, "error", err)
			if !batch {
				s.scheduleReopenLocked(gen)
			}
			s.mu.Unlock()
			continue
		}

		if batch {
			s.collector.Append(part)
			s.notice = ""
			obs.Logger.Info("batch scan collected", "barcode", event.Code, "part", part.ID)
			s.mu.Unlock()
			if s.cfg.BatchDelay > 0 {
				<-s.clock.After(s.cfg.BatchDelay)
			}
			continue
		}

		s.pending = &domain.PendingTransaction{Part: part}
		s.state = StateMenu
		s.notice = ""
		if n := len(s.queue); n > 0 {
			// Only one part can be on screen at a time.
			obs.Logger.Info("dropping queued scans", "count", n)
			s.queue = nil
		}
		s.flushing = false
		s.mu.Unlock()
		return
	}
}

func (s *Session) scheduleReopenLocked(gen int) {
	s.clock.AfterFunc(s.cfg.RecoveryDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen && s.state == StateScan {
			s.gateOpen = true
		}
	})
}

// Choose applies a menu action to the resolved part. ViewDetails leaves the
// machine in Menu; usage and restock advance it to Transaction.
func (s *Session) Choose(action MenuAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMenu || s.pending == nil {
		return fmt.Errorf("%w: no resolved part to act on", ErrInvalidTransition)
	}

	switch action {
	case MenuActionViewDetails:
		return nil
	case MenuActionUsage:
		s.pending.Type = domain.TransactionTypeUsage
	case MenuActionRestock:
		s.pending.Type = domain.TransactionTypeRestock
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}

	s.state = StateTransaction
	return nil
}

// Cancel returns the machine to Scan from any state, reopens the gate and
// invalidates any in-flight resolution.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// SetBatchMode toggles batch scanning. Any in-progress scan or form is
// abandoned; the machine returns to Scan with the gate open.
func (s *Session) SetBatchMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.batchMode = enabled
}

func (s *Session) resetLocked() {
	s.generation++
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.queue = nil
	s.pending = nil
	s.flushing = false
	s.state = StateScan
	s.gateOpen = true
	s.notice = ""
}

// Commit validates and applies the pending transaction: audit row and signed
// quantity delta are persisted in one transactional boundary, the cache entry
// for the barcode is evicted, and the machine resets to Scan. Validation and
// guard failures leave the form open and write nothing.
func (s *Session) Commit(ctx context.Context, quantity int, machineID, notes string) (domain.TransactionRecord, error) {
	// The lock is held through the store call: a Cancel either lands before the
	// state check here or waits until the movement has been written, so a
	// cancelled form can never reach the store.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateTransaction || s.pending == nil {
		return domain.TransactionRecord{}, fmt.Errorf("%w: no transaction in progress", ErrInvalidTransition)
	}
	if quantity <= 0 {
		return domain.TransactionRecord{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	s.pending.Quantity = quantity
	s.pending.MachineID = machineID
	s.pending.Notes = notes
	pending := *s.pending

	delta := pending.Type.SignedQuantity(quantity)
	if pending.Part.CurrentQuantity+delta < 0 {
		return domain.TransactionRecord{}, fmt.Errorf("%w: %d available, %d requested",
			ErrInsufficientStock, pending.Part.CurrentQuantity, quantity)
	}

	record := domain.TransactionRecord{
		ID:              uuid.New().String(),
		PartID:          pending.Part.ID,
		MachineID:       machineID,
		Type:            pending.Type,
		QuantitySigned:  delta,
		UnitCost:        pending.Part.UnitCost,
		Notes:           notes,
		PerformedBy:     s.tech.ID,
		PerformedByRole: s.tech.Role,
		CreatedAt:       s.clock.Now(),
	}

	if err := s.store.CommitTransaction(ctx, record); err != nil {
		if errors.Is(err, port.ErrStockConflict) {
			// Stock moved between resolution and commit; the snapshot is
			// stale. Reject so the technician re-scans against fresh stock.
			return domain.TransactionRecord{}, fmt.Errorf("%w: concurrent stock movement", ErrInsufficientStock)
		}
		return domain.TransactionRecord{}, fmt.Errorf("persist transaction: %w", err)
	}

	if err := s.cache.Evict(ctx, pending.Part.Barcode); err != nil {
		obs.Logger.Warn("cache eviction failed", "barcode", pending.Part.Barcode, "error", err)
	}

	s.resetLocked()

	obs.Logger.Info("transaction committed",
		"part", record.PartID, "type", record.Type, "delta", record.QuantitySigned, "by", record.PerformedBy)
	return record, nil
}

// View is the externally observable session state.
type View struct {
	State      State
	GateOpen   bool
	BatchMode  bool
	QueueDepth int
	Notice     string
	Pending    *domain.PendingTransaction
	LowStock   bool
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:      s.state,
		GateOpen:   s.gateOpen,
		BatchMode:  s.batchMode,
		QueueDepth: len(s.queue),
		Notice:     s.notice,
	}
	if s.pending != nil {
		p := *s.pending
		v.Pending = &p
		v.LowStock = p.Part.LowStock()
	}
	return v
}

func resolutionNotice(err error, code string) string {
	switch {
	case errors.Is(err, ErrPartNotFound):
		return fmt.Sprintf("no part found for barcode %s", code)
	case errors.Is(err, ErrFetchFailure):
		return "lookup failed, check connectivity and scan again"
	default:
		return "scan failed, try again"
	}
}
