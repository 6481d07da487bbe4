// Package upgrade decides whether an agent should switch gear for a
// capability. The pipeline order is fixed: eligibility, focus, in-flight,
// re-entrancy, candidate search, family lock, hysteresis, then hand-off to
// the orchestrator. Policy rejections are negative decisions, not errors.
package upgrade

import (
	"gearcraft.ai/internal/sim/world/feature/gear/runtime"
	"gearcraft.ai/internal/sim/world/feature/gear/sched"
	"gearcraft.ai/internal/sim/world/feature/gear/search"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Block codes reported alongside a false result.
const (
	CodeBadRequest  = "E_BAD_REQUEST"
	CodeIneligible  = "E_INELIGIBLE"
	CodeFocus       = "E_FOCUS"
	CodeInFlight    = "IN_FLIGHT"
	CodeReentrant   = "E_REENTRANT"
	CodeNoCandidate = "E_NO_CANDIDATE"
	CodeFamilyLock  = "E_FAMILY_LOCK"
	CodeHysteresis  = "E_HYSTERESIS"
)

type Scorer interface {
	Score(g *model.GearItem, agentID, capability string) float64
	BestCarried(a *model.Agent, capability string, load func(string) (*model.GearItem, bool)) (string, float64)
}

type Orchestrator interface {
	QueueAcquisition(a *model.Agent, capability string, cand search.Candidate, pr runtime.Priority, nowTick uint64) runtime.Outcome
}

type Options struct {
	MinGainPct       float64
	Radius           int
	PathCostBudget   float64
	SameCellPathCost float64
	Epsilon          float64
	CooldownTicks    uint64

	SameFamilyExtraGainPct float64
	HysteresisWindowTicks  uint64
	HysteresisExtraGainPct float64
	FocusWindowTicks       uint64

	Priority runtime.Priority
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Handled   bool
	Code      string
	Candidate search.Candidate
	Outcome   runtime.Outcome
}

// TryUpgradeFor runs the full decision pipeline for one agent and
// capability. Handled=true means the caller should defer its original task;
// false means proceed (blocked, nothing found, or orchestration failed).
func TryUpgradeFor(env search.Env, sc Scorer, st *sched.State, orch Orchestrator, a *model.Agent, capability string, opt Options, nowTick uint64) Decision {
	if a == nil || capability == "" {
		return Decision{Code: CodeBadRequest}
	}
	if !eligible(a) {
		return Decision{Code: CodeIneligible}
	}
	if st.FocusBlocks(a.ID, capability, nowTick) {
		return Decision{Code: CodeFocus}
	}
	// Pending gear work already in flight: report handled so the caller
	// does not start duplicate work.
	if a.HasPendingGearTask() {
		return Decision{Handled: true, Code: CodeInFlight}
	}
	if !st.BeginEvaluation(a.ID) {
		return Decision{Code: CodeReentrant}
	}
	defer st.EndEvaluation(a.ID)

	currentID, currentScore := sc.BestCarried(a, capability, env.Load)
	cand, ok := search.FindBestCandidate(env, sc, st, a, search.Params{
		Capability:       capability,
		CurrentScore:     currentScore,
		MinGainPct:       opt.MinGainPct,
		Radius:           opt.Radius,
		PathCostBudget:   opt.PathCostBudget,
		SameCellPathCost: opt.SameCellPathCost,
		Epsilon:          opt.Epsilon,
		CooldownTicks:    opt.CooldownTicks,
	}, nowTick)
	if !ok {
		return Decision{Code: CodeNoCandidate}
	}
	if cand.GearID == currentID {
		// The best thing around is what the agent already uses.
		return Decision{Code: CodeNoCandidate}
	}

	candGear, ok := env.Load(cand.GearID)
	if !ok {
		return Decision{Code: CodeNoCandidate}
	}

	// Micro-optimizing within one tool family needs extra justification.
	if currentID != "" {
		if cur, ok := env.Load(currentID); ok && cur.Family != "" && cur.Family == candGear.Family {
			if cand.GainPct < opt.MinGainPct+opt.SameFamilyExtraGainPct {
				return Decision{Code: CodeFamilyLock, Candidate: cand}
			}
		}
	}

	// Hysteresis: re-equipping the type just upgraded to needs extra gain
	// for the rest of the window.
	if h, ok := st.HysteresisFor(a.ID); ok && h.LastGearType == candGear.Type {
		if nowTick-h.LastUpgradeTick < opt.HysteresisWindowTicks {
			if cand.GainPct < opt.MinGainPct+opt.HysteresisExtraGainPct {
				return Decision{Code: CodeHysteresis, Candidate: cand}
			}
		}
	}

	out := orch.QueueAcquisition(a, capability, cand, opt.Priority, nowTick)
	if !out.Enqueued && !out.Deferred {
		return Decision{Code: out.Code, Candidate: cand, Outcome: out}
	}
	st.RecordUpgrade(a.ID, candGear.Type, nowTick)
	st.SetFocus(a.ID, capability, nowTick+opt.FocusWindowTicks)
	return Decision{Handled: true, Candidate: cand, Outcome: out}
}

// eligible filters agents that cannot manage gear right now: incapacitated,
// asleep, not autonomous, or unable to manipulate.
func eligible(a *model.Agent) bool {
	if a.Incapacitated || a.Asleep {
		return false
	}
	if !a.Autonomous || !a.CanManipulate {
		return false
	}
	return true
}
