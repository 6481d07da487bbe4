package world

import (
	"sort"

	"gearcraft.ai/internal/sim/world/kernel/model"
)

// The World is the engine's Env: lookups, pathing estimates, and the
// reservation service all live here.

func (w *World) Load(gearID string) (*model.GearItem, bool) {
	g, ok := w.gear[gearID]
	return g, ok
}

func (w *World) GearAtCell(p model.Vec3i) []string {
	cell := w.byCell[p]
	out := make([]string, len(cell))
	copy(out, cell)
	return out
}

func (w *World) StorageGearNear(p model.Vec3i, radius int) []string {
	var out []string
	for id, g := range w.gear {
		if g.Holder != model.HolderWorld || g.Destroyed {
			continue
		}
		if model.CellDist(p, g.Pos) > radius {
			continue
		}
		for _, z := range w.storage {
			if z.Contains(g.Pos) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (w *World) RegionGear(regionID string) []string {
	z, ok := w.regions[regionID]
	if !ok {
		return nil
	}
	var out []string
	for id, g := range w.gear {
		if g.Holder == model.HolderWorld && !g.Destroyed && z.Contains(g.Pos) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (w *World) GearNear(p model.Vec3i, radius int) []string {
	var out []string
	for id, g := range w.gear {
		if g.Holder == model.HolderWorld && !g.Destroyed && model.CellDist(p, g.Pos) <= radius {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (w *World) Reachable(agentID, gearID string) bool {
	if _, ok := w.agents[agentID]; !ok {
		return false
	}
	g, ok := w.gear[gearID]
	if !ok || g.Destroyed {
		return false
	}
	if g.Holder != model.HolderWorld {
		// Carried by the agent itself is trivially reachable.
		return g.HolderID == agentID
	}
	if !w.SameMap(agentID, gearID) {
		return false
	}
	if w.blocked[g.Pos] {
		return false
	}
	if w.cfg.BoundaryR > 0 {
		if model.CellDist(model.Vec3i{}, g.Pos) > w.cfg.BoundaryR {
			return false
		}
	}
	return true
}

// PathCost is a straight-line estimate; the movement layer refines real
// routes later and may still fail them.
func (w *World) PathCost(from model.Vec3i, gearID string) (float64, bool) {
	g, ok := w.gear[gearID]
	if !ok || g.Destroyed {
		return 0, false
	}
	if w.blocked[g.Pos] {
		return 0, false
	}
	return float64(model.CellDist(from, g.Pos)), true
}

func (w *World) ForbiddenTo(agentID, gearID string) bool {
	g, ok := w.gear[gearID]
	if !ok {
		return true
	}
	return g.Forbidden
}

func (w *World) SameMap(agentID, gearID string) bool {
	return w.agentMap[agentID] == w.itemMap[gearID]
}

func (w *World) ReservedByOther(gearID, agentID string) bool {
	r, ok := w.reservations[gearID]
	return ok && r.agentID != agentID
}

// Reserve grants an exclusive claim on a free item. Fails when the item is
// gone, carried, or already claimed by someone else.
func (w *World) Reserve(gearID, agentID, taskID string) bool {
	g, ok := w.gear[gearID]
	if !ok || g.Destroyed {
		return false
	}
	if g.Holder != model.HolderWorld {
		return false
	}
	if r, held := w.reservations[gearID]; held && r.agentID != agentID {
		return false
	}
	w.reservations[gearID] = reservation{agentID: agentID, taskID: taskID}
	return true
}

// Release drops a reservation only when holder and task match; stale
// releases are ignored.
func (w *World) Release(gearID, agentID, taskID string) {
	r, ok := w.reservations[gearID]
	if !ok || r.agentID != agentID || r.taskID != taskID {
		return
	}
	delete(w.reservations, gearID)
}

// DirectAcquire moves a free item straight into the agent's inventory,
// bypassing the task queue. Used as a one-shot fallback when a reservation
// went stale mid-decision.
func (w *World) DirectAcquire(agentID, gearID string) bool {
	a, ok := w.agents[agentID]
	if !ok {
		return false
	}
	g, ok := w.gear[gearID]
	if !ok || g.Destroyed || g.Holder != model.HolderWorld {
		return false
	}
	if w.ReservedByOther(gearID, agentID) {
		return false
	}
	w.indexRemove(gearID, g.Pos)
	g.Holder = model.HolderInventory
	g.HolderID = agentID
	a.Inventory = append(a.Inventory, gearID)
	delete(w.reservations, gearID)
	return true
}
