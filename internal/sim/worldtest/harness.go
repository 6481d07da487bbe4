// Package worldtest hosts end-to-end tests that drive the gear engine
// through a real in-memory world, tick by tick.
package worldtest

import (
	"io"
	"log"

	"gearcraft.ai/internal/protocol"
	"gearcraft.ai/internal/sim/tuning"
	"gearcraft.ai/internal/sim/world"
	"gearcraft.ai/internal/sim/world/feature/gear"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// TableResolver maps gear type straight to capability factors; material is
// ignored so tests can dial in exact scores.
type TableResolver struct {
	Factors map[string]map[string]float64
}

func (r *TableResolver) Factor(gearType, _, capability string) float64 {
	return r.Factors[gearType][capability]
}

func (r *TableResolver) Baseline(string) float64 { return 0 }

type EventLog struct {
	Events []protocol.DecisionEvent
}

func (l *EventLog) Record(ev protocol.DecisionEvent) { l.Events = append(l.Events, ev) }

func (l *EventLog) ByType(t string) []protocol.DecisionEvent {
	var out []protocol.DecisionEvent
	for _, ev := range l.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type Fixture struct {
	W      *world.World
	Eng    *gear.Engine
	Res    *TableResolver
	Events *EventLog
}

// NewFixture wires a world and an engine together, including the strict-mode
// enforcement hook and score-cache invalidation.
func NewFixture(tun tuning.Tuning, coreCaps []string) *Fixture {
	res := &TableResolver{Factors: map[string]map[string]float64{}}
	w := world.New(world.WorldConfig{ID: "W1", Seed: 42, BoundaryR: 512}, nil)
	events := &EventLog{}
	eng := gear.New(w, res, tun, coreCaps, log.New(io.Discard, "", 0), events)
	w.SetHooks(world.Hooks{
		GearChanged: func(gearID string) { eng.Scores().InvalidateGear(gearID) },
		AgentCapacityChanged: func(agentID string) {
			if !eng.StrictMode() {
				return
			}
			if a, ok := w.Agent(agentID); ok {
				eng.EnforceNow(a, "", 0, "strict", w.Tick())
			}
		},
	})
	return &Fixture{W: w, Eng: eng, Res: res, Events: events}
}

func (f *Fixture) SetFactor(gearType, capability string, v float64) {
	if f.Res.Factors[gearType] == nil {
		f.Res.Factors[gearType] = map[string]float64{}
	}
	f.Res.Factors[gearType][capability] = v
}

func (f *Fixture) AddAgent(id string, pos model.Vec3i, carryStat int) *model.Agent {
	a := &model.Agent{
		ID: id, Pos: pos,
		Autonomous: true, CanManipulate: true,
		StatCarryCap: carryStat,
	}
	f.W.AddAgent(a)
	return a
}

// GiveGear puts a real item of the given type into the agent's inventory.
func (f *Fixture) GiveGear(a *model.Agent, id, gearType string) *model.GearItem {
	g := &model.GearItem{ID: id, Type: gearType, Real: true, Holder: model.HolderInventory, HolderID: a.ID}
	f.W.AddGear(g)
	a.Inventory = append(a.Inventory, id)
	return g
}

// PlaceGear puts a real item of the given type loose in the world.
func (f *Fixture) PlaceGear(id, gearType string, pos model.Vec3i) *model.GearItem {
	g := &model.GearItem{ID: id, Type: gearType, Real: true, Holder: model.HolderWorld, Pos: pos}
	f.W.AddGear(g)
	return g
}
