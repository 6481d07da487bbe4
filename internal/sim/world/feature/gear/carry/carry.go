// Package carry enforces the per-agent carried-gear limit and selects
// eviction victims.
package carry

import (
	"gearcraft.ai/internal/sim/world/kernel/model"
)

type Scorer interface {
	Score(g *model.GearItem, agentID, capability string) float64
}

type Loader func(gearID string) (*model.GearItem, bool)

// Capacity is min(difficulty-derived cap, capability-derived cap), raised to
// carryGearMin when the agent wears carry-enhancing equipment, never below 1.
func Capacity(a *model.Agent, difficultyCap, carryGearMin int) int {
	c := difficultyCap
	if a.StatCarryCap < c {
		c = a.StatCarryCap
	}
	if a.HasCarryGear && c < carryGearMin {
		c = carryGearMin
	}
	if c < 1 {
		c = 1
	}
	return c
}

// CarriedReal returns a sorted snapshot of the agent's held real items.
// Improvised substitutes never count toward the limit.
func CarriedReal(a *model.Agent, load Loader) []string {
	ids := a.CarriedIDs()
	out := ids[:0]
	for _, id := range ids {
		g, ok := load(id)
		if !ok || !g.Real {
			continue
		}
		out = append(out, id)
	}
	return out
}

type Result struct {
	Capacity  int
	Carried   int
	NeedEvict bool
	VictimID  string
}

// EnsureCapacity decides whether taking the incoming item requires evicting
// a carried one first, and if so which. exclude marks items that must never
// be selected (the recent-acquisition shield). requestCap is the capability
// being optimized; with capacity 1 the best item for it is protected so the
// engine never evicts the very tool about to be needed.
func EnsureCapacity(a *model.Agent, incoming string, load Loader, sc Scorer, coreCaps []string, exclude func(gearID string) bool, requestCap string, difficultyCap, carryGearMin int) Result {
	r := Result{Capacity: Capacity(a, difficultyCap, carryGearMin)}
	carried := CarriedReal(a, load)
	r.Carried = len(carried)
	if a.Carries(incoming) {
		return r
	}
	if g, ok := load(incoming); ok && !g.Real {
		return r
	}
	if r.Carried < r.Capacity {
		return r
	}
	incomingScore := 0.0
	if g, ok := load(incoming); ok && requestCap != "" {
		incomingScore = sc.Score(g, a.ID, requestCap)
	}
	victim, ok := FindWorstCarried(a, carried, load, sc, coreCaps, exclude, requestCap, incomingScore, r.Capacity)
	if !ok {
		// Everything is protected; the caller treats this as a policy block.
		r.NeedEvict = true
		return r
	}
	r.NeedEvict = true
	r.VictimID = victim
	return r
}

// FindWorstCarried picks the carried real item with the lowest overall score:
// an unweighted average over the fixed core capability set. Excluded items are
// never selected. At capacity 1 the best item for the requested capability is
// additionally protected, unless the incoming item beats it for that
// capability (otherwise a strictly better replacement could never be taken).
func FindWorstCarried(a *model.Agent, carried []string, load Loader, sc Scorer, coreCaps []string, exclude func(gearID string) bool, requestCap string, incomingScore float64, capacity int) (string, bool) {
	protected := ""
	if capacity == 1 && requestCap != "" {
		bestScore := 0.0
		for _, id := range carried {
			g, ok := load(id)
			if !ok {
				continue
			}
			if s := sc.Score(g, a.ID, requestCap); s > bestScore {
				bestScore, protected = s, id
			}
		}
		if incomingScore > bestScore {
			protected = ""
		}
	}

	victim := ""
	worst := 0.0
	found := false
	for _, id := range carried {
		if id == protected {
			continue
		}
		if exclude != nil && exclude(id) {
			continue
		}
		g, ok := load(id)
		if !ok {
			continue
		}
		s := OverallScore(g, a.ID, sc, coreCaps)
		if !found || s < worst {
			victim, worst, found = id, s, true
		}
	}
	return victim, found
}

// OverallScore is the unweighted average score across the core capabilities.
func OverallScore(g *model.GearItem, agentID string, sc Scorer, coreCaps []string) float64 {
	if len(coreCaps) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range coreCaps {
		sum += sc.Score(g, agentID, c)
	}
	return sum / float64(len(coreCaps))
}
