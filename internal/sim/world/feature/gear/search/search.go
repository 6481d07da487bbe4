// Package search enumerates reachable gear across ordered location tiers and
// returns the single best candidate for a capability. Transiently unusable
// items (forbidden, reserved elsewhere, unreachable) are put on cooldown so
// retries skip them cheaply; nothing else is mutated.
package search

import (
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Tier numbering matches search order; lower is cheaper.
const (
	TierInventory = 1
	TierEquipped  = 2
	TierSameCell  = 3
	TierStorage   = 4
	TierHomeRegion = 5
	TierAnywhere  = 6
)

// Env is the spatial/reservation surface the search consumes. Implemented by
// the surrounding simulation.
type Env interface {
	Load(gearID string) (*model.GearItem, bool)
	GearAtCell(pos model.Vec3i) []string
	StorageGearNear(pos model.Vec3i, radius int) []string
	RegionGear(regionID string) []string
	GearNear(pos model.Vec3i, radius int) []string
	// Reachable reports the agent can physically get to the item and claim it.
	Reachable(agentID, gearID string) bool
	// PathCost estimates walk cost from a cell to the item; ok=false means
	// no path.
	PathCost(from model.Vec3i, gearID string) (float64, bool)
	ForbiddenTo(agentID, gearID string) bool
	ReservedByOther(gearID, agentID string) bool
}

type Scorer interface {
	Score(g *model.GearItem, agentID, capability string) float64
}

type Cooldowns interface {
	OnCooldown(gearID string, nowTick uint64) bool
	SetCooldown(gearID string, untilTick uint64)
}

// Candidate is an ephemeral scored proposal; recomputed per search, never
// persisted.
type Candidate struct {
	GearID   string
	Score    float64
	GainPct  float64
	PathCost float64
	Tier     int
}

type Params struct {
	Capability   string
	CurrentScore float64
	MinGainPct   float64
	Radius       int
	PathCostBudget float64
	SameCellPathCost float64
	Epsilon      float64
	// CooldownTicks is how long transiently unusable items stay skipped.
	CooldownTicks uint64
}

// FindBestCandidate walks the tiers in order and short-circuits on the first
// tier that yields an acceptable candidate. Acceptance requires the gain
// threshold unless the agent is in needs-rescue mode (current score at or
// below baseline), where any improvement is enough.
func FindBestCandidate(env Env, sc Scorer, cd Cooldowns, a *model.Agent, p Params, nowTick uint64) (Candidate, bool) {
	if env == nil || sc == nil || a == nil || p.Capability == "" {
		return Candidate{}, false
	}
	if p.Epsilon <= 0 {
		p.Epsilon = 0.001
	}
	if p.SameCellPathCost <= 0 {
		p.SameCellPathCost = 1
	}

	t := tierScan{env: env, sc: sc, cd: cd, agent: a, p: p, nowTick: nowTick}

	// Tiers 1-2: the agent's own slots, cost 0, no reach/budget checks.
	if c, ok := t.scanOwned(TierInventory, a.Inventory); ok {
		return c, true
	}
	if a.Equipped != "" {
		if c, ok := t.scanOwned(TierEquipped, []string{a.Equipped}); ok {
			return c, true
		}
	}
	if c, ok := t.scanWorld(TierSameCell, env.GearAtCell(a.Pos), false); ok {
		return c, true
	}
	if c, ok := t.scanWorld(TierStorage, env.StorageGearNear(a.Pos, p.Radius), true); ok {
		return c, true
	}
	if a.HomeRegion != "" {
		if c, ok := t.scanWorld(TierHomeRegion, env.RegionGear(a.HomeRegion), true); ok {
			return c, true
		}
	}
	if c, ok := t.scanWorld(TierAnywhere, env.GearNear(a.Pos, p.Radius), true); ok {
		return c, true
	}
	return Candidate{}, false
}

type tierScan struct {
	env     Env
	sc      Scorer
	cd      Cooldowns
	agent   *model.Agent
	p       Params
	nowTick uint64
}

func (t *tierScan) needsRescue() bool {
	return t.p.CurrentScore <= t.p.Epsilon
}

// coolDown marks an item transiently unusable for this agent's next passes.
func (t *tierScan) coolDown(id string) {
	if t.cd != nil && t.p.CooldownTicks > 0 {
		t.cd.SetCooldown(id, t.nowTick+t.p.CooldownTicks)
	}
}

func (t *tierScan) gainPct(score float64) float64 {
	cur := t.p.CurrentScore
	if cur < 0.001 {
		cur = 0.001
	}
	return (score - t.p.CurrentScore) / cur
}

func (t *tierScan) acceptable(score float64) bool {
	if score <= t.p.CurrentScore+t.p.Epsilon {
		return false
	}
	if t.needsRescue() {
		return true
	}
	return t.gainPct(score) >= t.p.MinGainPct
}

// scanOwned evaluates items already in the agent's possession (cost 0).
func (t *tierScan) scanOwned(tier int, ids []string) (Candidate, bool) {
	best := Candidate{}
	found := false
	for _, id := range ids {
		g, ok := t.env.Load(id)
		if !ok || g.Destroyed {
			continue
		}
		if t.cd != nil && t.cd.OnCooldown(id, t.nowTick) {
			continue
		}
		s := t.sc.Score(g, t.agent.ID, t.p.Capability)
		if !t.acceptable(s) {
			continue
		}
		c := Candidate{GearID: id, Score: s, GainPct: t.gainPct(s), PathCost: 0, Tier: tier}
		if !found || better(c, best, t.p.Epsilon) {
			best, found = c, true
		}
	}
	return best, found
}

// scanWorld evaluates candidates lying in the world; budgeted tiers apply
// the path-cost budget.
func (t *tierScan) scanWorld(tier int, ids []string, budgeted bool) (Candidate, bool) {
	best := Candidate{}
	found := false
	for _, id := range ids {
		if t.agent.Carries(id) {
			continue
		}
		g, ok := t.env.Load(id)
		if !ok || g.Destroyed {
			continue
		}
		if t.cd != nil && t.cd.OnCooldown(id, t.nowTick) {
			continue
		}
		if t.env.ForbiddenTo(t.agent.ID, id) {
			t.coolDown(id)
			continue
		}
		if t.env.ReservedByOther(id, t.agent.ID) {
			t.coolDown(id)
			continue
		}
		if !t.env.Reachable(t.agent.ID, id) {
			t.coolDown(id)
			continue
		}
		cost := t.p.SameCellPathCost
		if tier != TierSameCell {
			pc, ok := t.env.PathCost(t.agent.Pos, id)
			if !ok {
				continue
			}
			cost = pc
			if budgeted && t.p.PathCostBudget > 0 && cost > t.p.PathCostBudget {
				continue
			}
		}
		s := t.sc.Score(g, t.agent.ID, t.p.Capability)
		if !t.acceptable(s) {
			continue
		}
		c := Candidate{GearID: id, Score: s, GainPct: t.gainPct(s), PathCost: cost, Tier: tier}
		if !found || better(c, best, t.p.Epsilon) {
			best, found = c, true
		}
	}
	return best, found
}

// better orders candidates: earlier tier wins; within a tier, score ties
// (within epsilon) go to the cheaper path, otherwise the higher raw score.
func better(a, b Candidate, eps float64) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	d := a.Score - b.Score
	if d > -eps && d < eps {
		return a.PathCost < b.PathCost
	}
	return d > 0
}
