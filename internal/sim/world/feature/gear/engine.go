// Package gear is the entry point for gear assignment. The surrounding
// simulation hands it agents and an Env; the engine decides upgrades,
// enforces carry limits, and queues the resulting tasks.
package gear

import (
	"log"

	"gearcraft.ai/internal/protocol"
	"gearcraft.ai/internal/sim/tuning"
	"gearcraft.ai/internal/sim/world/feature/gear/carry"
	"gearcraft.ai/internal/sim/world/feature/gear/enforce"
	"gearcraft.ai/internal/sim/world/feature/gear/runtime"
	"gearcraft.ai/internal/sim/world/feature/gear/sched"
	"gearcraft.ai/internal/sim/world/feature/gear/score"
	"gearcraft.ai/internal/sim/world/feature/gear/search"
	"gearcraft.ai/internal/sim/world/feature/gear/upgrade"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Env is everything the engine needs from the simulation. The search and
// task surfaces overlap on Load/Reachable/ForbiddenTo; one implementation
// serves both.
type Env interface {
	search.Env
	runtime.Env
}

// Options carries per-call overrides. Zero values fall back to tuning.
type Options struct {
	MinGainPct     float64
	Radius         int
	PathCostBudget float64
	Priority       runtime.Priority
}

type Engine struct {
	env  Env
	tun  tuning.Tuning
	sc   *score.Engine
	st   *sched.State
	orch *runtime.Orchestrator
	log  *log.Logger
	sink runtime.EventSink

	coreCaps []string
}

func New(env Env, res score.Resolver, tun tuning.Tuning, coreCaps []string, logger *log.Logger, sink runtime.EventSink) *Engine {
	sc := score.New(res, score.Config{
		Epsilon:        tun.Scoring.Epsilon,
		QualityCurve:   tun.Scoring.QualityCurve,
		QualityScaling: tun.Scoring.QualityScaling,
	})
	st := sched.NewState()
	orch := runtime.New(env, sc, st, runtime.Config{
		DifficultyCap:        tun.Carry.DifficultyCap,
		CarryGearMin:         tun.Carry.CarryGearMinimum,
		CoreCaps:             coreCaps,
		RecentAcqShieldTicks: tun.Carry.RecentAcqShieldTicks,
		CooldownTicks:        tun.Search.CooldownTicks,
	}, logger, sink)
	return &Engine{env: env, tun: tun, sc: sc, st: st, orch: orch, log: logger, sink: sink, coreCaps: coreCaps}
}

// Scores exposes the memoized score engine for cache invalidation hooks.
func (e *Engine) Scores() *score.Engine { return e.sc }

// State exposes scheduling state; the simulation reads it for diagnostics.
func (e *Engine) State() *sched.State { return e.st }

// TryUpgradeFor evaluates one agent for one capability. True means gear work
// was queued (or is already in flight) and the caller should hold off on the
// original activity.
func (e *Engine) TryUpgradeFor(a *model.Agent, capability string, opt Options, nowTick uint64) bool {
	if a == nil {
		return false
	}
	uo := upgrade.Options{
		MinGainPct:             e.tun.Upgrade.MinGainPct,
		Radius:                 e.tun.Search.RadiusCells,
		PathCostBudget:         e.tun.Search.PathCostBudget,
		SameCellPathCost:       e.tun.Search.SameCellPathCost,
		Epsilon:                e.tun.Scoring.Epsilon,
		CooldownTicks:          e.tun.Search.CooldownTicks,
		SameFamilyExtraGainPct: e.tun.Upgrade.SameFamilyExtraGainPct,
		HysteresisWindowTicks:  e.tun.Upgrade.HysteresisWindowTicks,
		HysteresisExtraGainPct: e.tun.Upgrade.HysteresisExtraGainPct,
		FocusWindowTicks:       e.tun.Upgrade.FocusWindowTicks,
		Priority:               opt.Priority,
	}
	if opt.MinGainPct > 0 {
		uo.MinGainPct = opt.MinGainPct
	}
	if opt.Radius > 0 {
		uo.Radius = opt.Radius
	}
	if opt.PathCostBudget > 0 {
		uo.PathCostBudget = opt.PathCostBudget
	}

	d := upgrade.TryUpgradeFor(e.env, e.sc, e.st, e.orch, a, capability, uo, nowTick)
	switch {
	case d.Handled && d.Code != upgrade.CodeInFlight:
		e.emit(protocol.DecisionEvent{
			Tick: nowTick, Type: protocol.EventUpgradeQueued,
			AgentID: a.ID, Capability: capability,
			GearID: d.Candidate.GearID, GainPct: d.Candidate.GainPct,
			Score: d.Candidate.Score, Tier: d.Candidate.Tier,
			TaskID: d.Outcome.TaskID, VictimID: d.Outcome.VictimID,
		})
		if e.log != nil {
			e.log.Printf("[gear] upgrade agent=%s cap=%s gear=%s gain=%.2f tier=%d",
				a.ID, capability, d.Candidate.GearID, d.Candidate.GainPct, d.Candidate.Tier)
		}
	case !d.Handled && d.Code != upgrade.CodeNoCandidate && d.Code != upgrade.CodeIneligible && d.Code != upgrade.CodeBadRequest:
		e.emit(protocol.DecisionEvent{
			Tick: nowTick, Type: protocol.EventUpgradeBlocked,
			AgentID: a.ID, Capability: capability,
			GearID: d.Candidate.GearID, Code: d.Code,
		})
	}
	return d.Handled
}

// Capacity reports the agent's current carried-gear slot count.
func (e *Engine) Capacity(a *model.Agent) int {
	if a == nil {
		return 0
	}
	return carry.Capacity(a, e.tun.Carry.DifficultyCap, e.tun.Carry.CarryGearMinimum)
}

// IsCompliantWithCarryLimit reports whether the agent's real carried gear
// fits allowedCount slots. allowedCount <= 0 means the computed capacity.
func (e *Engine) IsCompliantWithCarryLimit(a *model.Agent, allowedCount int) bool {
	if a == nil {
		return true
	}
	if allowedCount <= 0 {
		allowedCount = e.Capacity(a)
	}
	return len(carry.CarriedReal(a, e.env.Load)) <= allowedCount
}

// EnforceNow queues evictions until the agent fits allowedCount slots,
// keeping keeperID if carried. allowedCount <= 0 means the computed
// capacity. Idempotent within a tick.
func (e *Engine) EnforceNow(a *model.Agent, keeperID string, allowedCount int, reason string, nowTick uint64) int {
	if a == nil {
		return 0
	}
	if allowedCount <= 0 {
		allowedCount = e.Capacity(a)
	}
	n := enforce.EnforceNow(a, e.env.Load, e.sc, e.orch, e.coreCaps, keeperID, allowedCount, nowTick)
	if n > 0 {
		e.emit(protocol.DecisionEvent{
			Tick: nowTick, Type: protocol.EventEnforceRun,
			AgentID: a.ID, GearID: keeperID, Code: reason, Evicted: n,
		})
		if e.log != nil {
			e.log.Printf("[gear] enforce agent=%s evicted=%d reason=%s", a.ID, n, reason)
		}
	}
	return n
}

// StrictMode reports whether enforcement should run automatically after
// capacity-reducing events.
func (e *Engine) StrictMode() bool { return e.tun.Carry.StrictMode }

// ReleaseAllReservations returns every outstanding hold to the simulation.
// Used on shutdown and world reset.
func (e *Engine) ReleaseAllReservations() {
	for gearID, r := range e.st.Reservations() {
		e.env.Release(gearID, r.AgentID, r.TaskID)
		e.st.DropReservation(gearID)
	}
}

// ClearTransientState drops caches, cooldowns, shields, and windows.
// Reservations are released first so no item stays locked.
func (e *Engine) ClearTransientState() {
	e.ReleaseAllReservations()
	e.st.Clear()
	e.sc.Reset()
}

func (e *Engine) emit(ev protocol.DecisionEvent) {
	if e.sink != nil {
		e.sink.Record(ev)
	}
}
