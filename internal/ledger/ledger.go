package ledger

import (
	"fmt"
	"log/slog"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"

	"carvolve/internal/model"
)

// Dispatch is a slot handed to the evaluator.
type Dispatch struct {
	ID     SlotID
	Genome model.Genome
	Color  colorful.Color
}

// Ledger tracks Pending -> Running -> Done for every slot of one generation.
// All methods are safe for concurrent use; readers never observe a partially
// applied batch.
type Ledger struct {
	mu     sync.RWMutex
	slots  []Slot
	logger *slog.Logger
}

// New builds one Pending slot per genome.
func New(genomes []model.Genome, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	slots := make([]Slot, len(genomes))
	for i, g := range genomes {
		slots[i] = Slot{Genome: g}
	}
	return &Ledger{slots: slots, logger: logger}
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.slots)
}

// PopNextPending moves up to limit Pending slots, in ascending slot order, to
// Running. It returns nil and changes nothing when no slot is Pending.
func (l *Ledger) PopNextPending(limit int) []Dispatch {
	if limit <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Dispatch
	for i := range l.slots {
		if len(out) == limit {
			break
		}
		if l.slots[i].Status != StatusPending {
			continue
		}
		l.slots[i].Status = StatusRunning
		out = append(out, Dispatch{
			ID:     SlotID(i),
			Genome: l.slots[i].Genome,
			Color:  RampColor(len(out), limit),
		})
	}
	if len(out) == 0 {
		l.logger.Warn("no pending slots")
	}
	return out
}

// SetFitness records an evaluator result for a Running or Done slot.
// ReachedFinish latches once fitness meets FinishThreshold.
func (l *Ledger) SetFitness(id SlotID, fitness int64, fellApart bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, err := l.slotLocked(id)
	if err != nil {
		return err
	}
	if slot.Status == StatusPending {
		return fmt.Errorf("%w: set fitness on slot %d", ErrSlotNotStarted, id)
	}
	slot.Fitness = fitness
	slot.Scored = true
	slot.FellApart = fellApart
	if fitness >= FinishThreshold {
		slot.ReachedFinish = true
	}
	return nil
}

// Finalize moves a Running slot to Done and returns it. Finalizing a Done
// slot is tolerated: it logs a warning and reports repeated=true.
func (l *Ledger) Finalize(id SlotID) (slot Slot, repeated bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.slotLocked(id)
	if err != nil {
		return Slot{}, false, err
	}
	switch s.Status {
	case StatusPending:
		return Slot{}, false, fmt.Errorf("%w: finalize slot %d", ErrSlotNotStarted, id)
	case StatusDone:
		l.logger.Warn("slot already finalized", "slot", int(id))
		repeated = true
	default:
		s.Status = StatusDone
	}
	return *s, repeated, nil
}

// AllDone reports whether every slot is Done.
func (l *Ledger) AllDone() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.slots {
		if s.Status != StatusDone {
			return false
		}
	}
	return true
}

func (l *Ledger) Slot(id SlotID) (Slot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id < 0 || int(id) >= len(l.slots) {
		return Slot{}, fmt.Errorf("%w: %d", ErrUnknownSlot, id)
	}
	return l.slots[id], nil
}

// Snapshot copies every slot under one read lock.
func (l *Ledger) Snapshot() []Slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Slot(nil), l.slots...)
}

// Counts returns the number of slots per status.
func (l *Ledger) Counts() map[Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := map[Status]int{StatusPending: 0, StatusRunning: 0, StatusDone: 0}
	for _, s := range l.slots {
		counts[s.Status]++
	}
	return counts
}

func (l *Ledger) slotLocked(id SlotID) (*Slot, error) {
	if id < 0 || int(id) >= len(l.slots) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSlot, id)
	}
	return &l.slots[id], nil
}
