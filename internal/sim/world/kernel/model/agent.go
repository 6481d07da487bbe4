package model

import (
	"sort"

	"gearcraft.ai/internal/sim/tasks"
)

type Agent struct {
	ID   string
	Name string

	Pos        Vec3i
	HomeRegion string

	// Eligibility flags, owned by the surrounding simulation.
	Incapacitated bool
	Asleep        bool
	// Autonomous agents manage their own gear; others only act on direct
	// orders and are skipped by the engine.
	Autonomous bool
	// CanManipulate is false when the agent lacks the basic capacity to
	// pick up or wield anything.
	CanManipulate bool

	// StatCarryCap is the capability-derived carried-gear limit.
	StatCarryCap int
	// HasCarryGear raises the effective carry minimum (e.g. a tool belt).
	HasCarryGear bool

	// Equipped is the gear item in the active slot ("" for none).
	Equipped string
	// Inventory holds carried gear item ids (excluding Equipped).
	Inventory []string

	CurrentTask *tasks.GearTask
	Queue       []*tasks.GearTask
}

func (a *Agent) InitDefaults() {
	if a.StatCarryCap <= 0 {
		a.StatCarryCap = 2
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	a.Autonomous = true
	a.CanManipulate = true
}

// Carries reports whether the agent holds the item in any slot.
func (a *Agent) Carries(gearID string) bool {
	if gearID == "" {
		return false
	}
	if a.Equipped == gearID {
		return true
	}
	for _, id := range a.Inventory {
		if id == gearID {
			return true
		}
	}
	return false
}

// CarriedIDs returns a sorted snapshot of all held item ids. Callers mutate
// slots while iterating decisions, so this is always a copy.
func (a *Agent) CarriedIDs() []string {
	out := make([]string, 0, len(a.Inventory)+1)
	if a.Equipped != "" {
		out = append(out, a.Equipped)
	}
	out = append(out, a.Inventory...)
	sort.Strings(out)
	return out
}

func (a *Agent) RemoveCarried(gearID string) bool {
	if a.Equipped == gearID {
		a.Equipped = ""
		return true
	}
	for i, id := range a.Inventory {
		if id != gearID {
			continue
		}
		copy(a.Inventory[i:], a.Inventory[i+1:])
		a.Inventory = a.Inventory[:len(a.Inventory)-1]
		return true
	}
	return false
}

// EnqueueBack appends a task to the agent's queue.
func (a *Agent) EnqueueBack(t *tasks.GearTask) {
	if t == nil {
		return
	}
	a.Queue = append(a.Queue, t)
}

// EnqueueFront places a task ahead of all queued tasks. It does not preempt
// the current task.
func (a *Agent) EnqueueFront(t *tasks.GearTask) {
	if t == nil {
		return
	}
	a.Queue = append([]*tasks.GearTask{t}, a.Queue...)
}

// TryStartNow makes the task current if the agent is idle, removing it from
// the queue if it was queued. Returns false when the agent is busy.
func (a *Agent) TryStartNow(t *tasks.GearTask) bool {
	if t == nil || a.CurrentTask != nil {
		return false
	}
	for i, q := range a.Queue {
		if q == t {
			copy(a.Queue[i:], a.Queue[i+1:])
			a.Queue = a.Queue[:len(a.Queue)-1]
			break
		}
	}
	a.CurrentTask = t
	return true
}

// QueuedEquivalent finds an already-queued (or current) gear task that would
// do the same thing.
func (a *Agent) QueuedEquivalent(kind tasks.Kind, gearID string) (*tasks.GearTask, bool) {
	if a.CurrentTask.Equivalent(kind, gearID) {
		return a.CurrentTask, true
	}
	for _, q := range a.Queue {
		if q.Equivalent(kind, gearID) {
			return q, true
		}
	}
	return nil, false
}

// HasPendingGearTask reports whether any gear-management task is current or
// queued for the agent.
func (a *Agent) HasPendingGearTask() bool {
	if a.CurrentTask != nil && tasks.IsGearKind(a.CurrentTask.Kind) {
		return true
	}
	for _, q := range a.Queue {
		if tasks.IsGearKind(q.Kind) {
			return true
		}
	}
	return false
}

// QueuedEvictionFor reports whether an eviction task for the item is already
// current or queued.
func (a *Agent) QueuedEvictionFor(gearID string) bool {
	if a.CurrentTask != nil && tasks.IsEviction(a.CurrentTask.Kind) && a.CurrentTask.GearID == gearID {
		return true
	}
	for _, q := range a.Queue {
		if tasks.IsEviction(q.Kind) && q.GearID == gearID {
			return true
		}
	}
	return false
}
