package world

import (
	"gearcraft.ai/internal/sim/tasks"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Step advances the world by one tick: every agent starts its next queued
// task if idle, then progresses its current one. Agents run in sorted ID
// order so replays with the same inputs produce the same state.
func (w *World) Step() uint64 {
	now := w.tick.Load()
	for _, id := range w.AgentIDs() {
		a := w.agents[id]
		if a.Incapacitated {
			continue
		}
		if a.CurrentTask == nil && len(a.Queue) > 0 {
			a.CurrentTask = a.Queue[0]
			a.Queue = a.Queue[1:]
			a.CurrentTask.StartedTick = now
		}
		if a.CurrentTask != nil {
			w.progressTask(a, a.CurrentTask, now)
		}
	}
	w.tick.Add(1)
	return now
}

// StepN runs Step n times.
func (w *World) StepN(n int) {
	for i := 0; i < n; i++ {
		w.Step()
	}
}

func (w *World) progressTask(a *model.Agent, t *tasks.GearTask, now uint64) {
	switch t.Kind {
	case tasks.KindEquip:
		w.finishEquip(a, t)
	case tasks.KindTransportToInventory:
		w.progressTransport(a, t)
	case tasks.KindDropHeld, tasks.KindDropEquipped:
		w.finishDrop(a, t)
	case tasks.KindHaulToLocation:
		w.progressHaul(a, t)
	default:
		a.CurrentTask = nil
	}
}

func (w *World) finishEquip(a *model.Agent, t *tasks.GearTask) {
	defer w.endTask(a, t)
	g, ok := w.gear[t.GearID]
	if !ok || g.Destroyed {
		return
	}
	switch {
	case g.Holder == model.HolderInventory && g.HolderID == a.ID:
		a.RemoveCarried(t.GearID)
	case g.Holder == model.HolderEquipped && g.HolderID == a.ID:
		return // already equipped
	case g.Holder == model.HolderWorld && g.Pos == a.Pos:
		if w.ReservedByOther(t.GearID, a.ID) {
			return
		}
		w.indexRemove(t.GearID, g.Pos)
	default:
		return // moved away since the decision
	}
	if a.Equipped != "" {
		if prev, ok := w.gear[a.Equipped]; ok {
			prev.Holder = model.HolderInventory
			a.Inventory = append(a.Inventory, a.Equipped)
		}
	}
	a.Equipped = t.GearID
	g.Holder = model.HolderEquipped
	g.HolderID = a.ID
	if w.hooks.AgentCapacityChanged != nil {
		w.hooks.AgentCapacityChanged(a.ID)
	}
}

func (w *World) progressTransport(a *model.Agent, t *tasks.GearTask) {
	g, ok := w.gear[t.GearID]
	if !ok || g.Destroyed || g.Holder != model.HolderWorld || w.ReservedByOther(t.GearID, a.ID) {
		w.endTask(a, t)
		return
	}
	if a.Pos != g.Pos {
		a.Pos = stepToward(a.Pos, g.Pos)
		if a.Pos != g.Pos {
			return
		}
	}
	w.indexRemove(t.GearID, g.Pos)
	g.Holder = model.HolderInventory
	g.HolderID = a.ID
	a.Inventory = append(a.Inventory, t.GearID)
	w.endTask(a, t)
	if w.hooks.AgentCapacityChanged != nil {
		w.hooks.AgentCapacityChanged(a.ID)
	}
}

func (w *World) finishDrop(a *model.Agent, t *tasks.GearTask) {
	defer w.endTask(a, t)
	g, ok := w.gear[t.GearID]
	if !ok || g.Destroyed || g.HolderID != a.ID {
		return
	}
	a.RemoveCarried(t.GearID)
	g.Holder = model.HolderWorld
	g.HolderID = ""
	g.Pos = a.Pos
	w.indexAdd(t.GearID, g.Pos)
}

func (w *World) progressHaul(a *model.Agent, t *tasks.GearTask) {
	g, ok := w.gear[t.GearID]
	if !ok || g.Destroyed || g.HolderID != a.ID {
		w.endTask(a, t)
		return
	}
	dest := model.Vec3i(t.Dest)
	if a.Pos != dest {
		a.Pos = stepToward(a.Pos, dest)
		if a.Pos != dest {
			return
		}
	}
	a.RemoveCarried(t.GearID)
	g.Holder = model.HolderWorld
	g.HolderID = ""
	g.Pos = dest
	w.indexAdd(t.GearID, g.Pos)
	w.endTask(a, t)
}

// endTask clears the task and returns its reservation, if it held one.
func (w *World) endTask(a *model.Agent, t *tasks.GearTask) {
	w.Release(t.GearID, a.ID, t.TaskID)
	if a.CurrentTask == t {
		a.CurrentTask = nil
	}
}

// stepToward moves one cell per axis per tick, Chebyshev speed 1.
func stepToward(from, to model.Vec3i) model.Vec3i {
	step := func(a, b int) int {
		if a < b {
			return a + 1
		}
		if a > b {
			return a - 1
		}
		return a
	}
	return model.Vec3i{X: step(from.X, to.X), Y: step(from.Y, to.Y), Z: step(from.Z, to.Z)}
}
