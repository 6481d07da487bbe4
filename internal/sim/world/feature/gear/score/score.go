// Package score turns resolver factors, wear, and quality into a single
// comparable number for (agent, gear item, capability). Results are memoized;
// invalidation is explicit, driven by inventory and item-state changes.
package score

import (
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Resolver is the externally owned capability resolver.
type Resolver interface {
	// Factor yields the multiplicative factor gear of this type and material
	// provides for a capability, 0 when it provides none.
	Factor(gearType, stuff, capability string) float64
	// Baseline is the factor an agent has with no gear at all.
	Baseline(capability string) float64
}

type Config struct {
	// Epsilon absorbs float noise; factors within Epsilon of baseline score 0.
	Epsilon float64
	// QualityCurve maps quality tier to a score multiplier.
	QualityCurve   []float64
	QualityScaling bool
}

type cacheKey struct {
	agentID    string
	gearID     string
	capability string
}

type Engine struct {
	res   Resolver
	cfg   Config
	cache map[cacheKey]float64
}

func New(res Resolver, cfg Config) *Engine {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.001
	}
	return &Engine{
		res:   res,
		cfg:   cfg,
		cache: map[cacheKey]float64{},
	}
}

// Score returns the improvement the item offers the agent for the
// capability; 0 means no improvement over bare hands. Deterministic for
// identical agent/item state; cached until invalidated.
func (e *Engine) Score(g *model.GearItem, agentID, capability string) float64 {
	if g == nil || capability == "" {
		return 0
	}
	k := cacheKey{agentID: agentID, gearID: g.ID, capability: capability}
	if v, ok := e.cache[k]; ok {
		return v
	}
	v := e.compute(g, capability)
	e.cache[k] = v
	return v
}

func (e *Engine) compute(g *model.GearItem, capability string) float64 {
	factor := e.res.Factor(g.Type, g.Stuff, capability)
	base := e.res.Baseline(capability)
	if factor <= base+e.cfg.Epsilon {
		return 0
	}
	s := factor - base
	if e.cfg.QualityScaling && g.HasQuality && len(e.cfg.QualityCurve) > 0 {
		q := g.Quality
		if q < 0 {
			q = 0
		}
		if q >= len(e.cfg.QualityCurve) {
			q = len(e.cfg.QualityCurve) - 1
		}
		s *= e.cfg.QualityCurve[q]
	}
	s *= g.ConditionFactor()
	if s < 0 {
		return 0
	}
	return s
}

// InvalidateAgent drops every cached entry for the agent. Call when the
// agent's carried set changes.
func (e *Engine) InvalidateAgent(agentID string) {
	for k := range e.cache {
		if k.agentID == agentID {
			delete(e.cache, k)
		}
	}
}

// InvalidateGear drops every cached entry for the item. Call when its
// condition or quality changes.
func (e *Engine) InvalidateGear(gearID string) {
	for k := range e.cache {
		if k.gearID == gearID {
			delete(e.cache, k)
		}
	}
}

func (e *Engine) Reset() {
	e.cache = map[cacheKey]float64{}
}

// BestCarried scans only the agent's held slots and returns the highest
// scoring item id with its score ("" when nothing helps). No per-call
// allocation: slots are iterated in place.
func (e *Engine) BestCarried(a *model.Agent, capability string, load func(string) (*model.GearItem, bool)) (string, float64) {
	if a == nil || load == nil {
		return "", 0
	}
	bestID := ""
	best := 0.0
	consider := func(id string) {
		if id == "" {
			return
		}
		g, ok := load(id)
		if !ok {
			return
		}
		s := e.Score(g, a.ID, capability)
		if s > best+e.cfg.Epsilon || (bestID == "" && s > 0) {
			bestID, best = id, s
		}
	}
	consider(a.Equipped)
	for _, id := range a.Inventory {
		consider(id)
	}
	return bestID, best
}

// Epsilon exposes the configured comparison tolerance.
func (e *Engine) Epsilon() float64 { return e.cfg.Epsilon }
