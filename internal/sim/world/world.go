// Package world is a single-threaded in-memory simulation that hosts the
// gear engine. All state must be accessed only from the world loop
// goroutine; the tick counter is the only value read from outside.
package world

import (
	"fmt"
	"sort"
	"sync/atomic"

	"gearcraft.ai/internal/sim/catalogs"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

type WorldConfig struct {
	ID        string
	Seed      int64
	BoundaryR int
}

// Zone is an axis-aligned box, inclusive on both corners.
type Zone struct {
	Min, Max model.Vec3i
}

func (z Zone) Contains(p model.Vec3i) bool {
	return p.X >= z.Min.X && p.X <= z.Max.X &&
		p.Y >= z.Min.Y && p.Y <= z.Max.Y &&
		p.Z >= z.Min.Z && p.Z <= z.Max.Z
}

type reservation struct {
	agentID string
	taskID  string
}

type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	agents map[string]*model.Agent
	gear   map[string]*model.GearItem

	// byCell indexes free items (world holder) by position.
	byCell map[model.Vec3i][]string

	storage []Zone
	regions map[string]Zone

	// blocked cells are unreachable for everyone; tests and scenarios use
	// them to model terrain.
	blocked map[model.Vec3i]bool

	// maps splits agents and items across disconnected areas. Empty string
	// is the main map.
	agentMap map[string]string
	itemMap  map[string]string

	reservations map[string]reservation

	nextTaskNum atomic.Uint64

	hooks Hooks
}

// Hooks lets the embedding engine react to world mutations. All optional.
type Hooks struct {
	// GearChanged fires when an item's scoring inputs changed (durability,
	// quality, destruction).
	GearChanged func(gearID string)
	// AgentCapacityChanged fires when an agent's carry capacity may have
	// shrunk; strict mode re-enforces on it.
	AgentCapacityChanged func(agentID string)
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) *World {
	return &World{
		cfg:          cfg,
		catalogs:     cats,
		agents:       map[string]*model.Agent{},
		gear:         map[string]*model.GearItem{},
		byCell:       map[model.Vec3i][]string{},
		regions:      map[string]Zone{},
		blocked:      map[model.Vec3i]bool{},
		agentMap:     map[string]string{},
		itemMap:      map[string]string{},
		reservations: map[string]reservation{},
	}
}

func (w *World) SetHooks(h Hooks)   { w.hooks = h }
func (w *World) Tick() uint64       { return w.tick.Load() }
func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) AddAgent(a *model.Agent) {
	a.InitDefaults()
	w.agents[a.ID] = a
}

func (w *World) Agent(id string) (*model.Agent, bool) {
	a, ok := w.agents[id]
	return a, ok
}

// AgentIDs returns agents in stable order for deterministic iteration.
func (w *World) AgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) AddGear(g *model.GearItem) {
	w.gear[g.ID] = g
	if g.Holder == model.HolderWorld {
		w.indexAdd(g.ID, g.Pos)
	}
}

func (w *World) AddStorageZone(z Zone)            { w.storage = append(w.storage, z) }
func (w *World) AddRegion(id string, z Zone)      { w.regions[id] = z }
func (w *World) BlockCell(p model.Vec3i)          { w.blocked[p] = true }
func (w *World) SetAgentMap(agentID, mapID string) { w.agentMap[agentID] = mapID }
func (w *World) SetItemMap(gearID, mapID string)  { w.itemMap[gearID] = mapID }

func (w *World) indexAdd(id string, p model.Vec3i) {
	w.byCell[p] = append(w.byCell[p], id)
	sort.Strings(w.byCell[p])
}

func (w *World) indexRemove(id string, p model.Vec3i) {
	cell := w.byCell[p]
	for i, v := range cell {
		if v == id {
			w.byCell[p] = append(cell[:i], cell[i+1:]...)
			break
		}
	}
	if len(w.byCell[p]) == 0 {
		delete(w.byCell, p)
	}
}

// WearGear reduces durability after use and signals the score cache.
// Items worn to zero stay usable at their floor factor.
func (w *World) WearGear(gearID string, amount int) {
	g, ok := w.gear[gearID]
	if !ok || g.MaxDurability <= 0 {
		return
	}
	g.Durability -= amount
	if g.Durability < 0 {
		g.Durability = 0
	}
	if w.hooks.GearChanged != nil {
		w.hooks.GearChanged(gearID)
	}
}

// DestroyGear removes an item from play wherever it is held.
func (w *World) DestroyGear(gearID string) {
	g, ok := w.gear[gearID]
	if !ok || g.Destroyed {
		return
	}
	g.Destroyed = true
	switch g.Holder {
	case model.HolderWorld:
		w.indexRemove(gearID, g.Pos)
	case model.HolderInventory, model.HolderEquipped:
		if a, ok := w.agents[g.HolderID]; ok {
			a.RemoveCarried(gearID)
			if w.hooks.AgentCapacityChanged != nil {
				w.hooks.AgentCapacityChanged(a.ID)
			}
		}
	}
	delete(w.reservations, gearID)
	if w.hooks.GearChanged != nil {
		w.hooks.GearChanged(gearID)
	}
}

// SetCarryStat adjusts an agent's capability-derived carry capacity and
// triggers strict-mode enforcement when it shrank.
func (w *World) SetCarryStat(agentID string, v int) {
	a, ok := w.agents[agentID]
	if !ok {
		return
	}
	shrank := v < a.StatCarryCap
	a.StatCarryCap = v
	if shrank && w.hooks.AgentCapacityChanged != nil {
		w.hooks.AgentCapacityChanged(agentID)
	}
}

// SetCarryGear toggles carry-enhancing equipment on an agent.
func (w *World) SetCarryGear(agentID string, on bool) {
	a, ok := w.agents[agentID]
	if !ok {
		return
	}
	had := a.HasCarryGear
	a.HasCarryGear = on
	if had && !on && w.hooks.AgentCapacityChanged != nil {
		w.hooks.AgentCapacityChanged(agentID)
	}
}

func (w *World) NewTaskID() string {
	return fmt.Sprintf("task-%d", w.nextTaskNum.Add(1))
}
