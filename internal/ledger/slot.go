package ledger

import (
	"errors"
	"fmt"
	"strings"

	"carvolve/internal/model"
)

// FinishThreshold is the fitness at which a run counts as having reached the
// finish flag.
const FinishThreshold int64 = 14400

// MaxCollisionSlots bounds slot ids usable as physics collision groups.
const MaxCollisionSlots = 32

var (
	// ErrSlotNotStarted is returned when a Pending slot is finalized or
	// scored. It indicates a driver bug.
	ErrSlotNotStarted = errors.New("slot has not been started")
	ErrUnknownSlot    = errors.New("unknown slot")
)

type Status uint8

const (
	StatusPending Status = iota
	StatusRunning
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// SlotID indexes a slot within one ledger. It is only meaningful for the
// generation that produced it.
type SlotID int

// CollisionGroup is the bitmask a physics evaluator uses to keep slots from
// colliding with each other. The ledger itself accepts any number of slots;
// the MaxCollisionSlots bound belongs to the evaluator, and the driver warns
// when a population exceeds it.
func (id SlotID) CollisionGroup() (uint32, error) {
	if id < 0 || id >= MaxCollisionSlots {
		return 0, fmt.Errorf("slot %d has no collision group (limit %d)", id, MaxCollisionSlots)
	}
	return 1 << uint(id), nil
}

// Slot is the evaluation state of one population row.
type Slot struct {
	Genome        model.Genome
	Status        Status
	Fitness       int64
	Scored        bool
	FellApart     bool
	ReachedFinish bool
}

func (s Slot) String() string {
	if s.Status == StatusPending {
		return "pending"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s fitness=%5d", s.Status, s.Fitness)
	if s.ReachedFinish {
		b.WriteString(" finish")
	}
	if s.FellApart {
		b.WriteString(" fell-apart")
	}
	return b.String()
}
