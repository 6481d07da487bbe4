package search

import (
	"testing"

	"gearcraft.ai/internal/sim/world/kernel/model"
)

type stubEnv struct {
	items     map[string]*model.GearItem
	atCell    []string
	storage   []string
	region    []string
	near      []string
	pathCost  map[string]float64
	forbidden map[string]bool
	reserved  map[string]bool
	unreach   map[string]bool
}

func (s *stubEnv) Load(id string) (*model.GearItem, bool) {
	g, ok := s.items[id]
	return g, ok
}
func (s *stubEnv) GearAtCell(model.Vec3i) []string              { return s.atCell }
func (s *stubEnv) StorageGearNear(model.Vec3i, int) []string    { return s.storage }
func (s *stubEnv) RegionGear(string) []string                   { return s.region }
func (s *stubEnv) GearNear(model.Vec3i, int) []string           { return s.near }
func (s *stubEnv) Reachable(_, id string) bool                  { return !s.unreach[id] }
func (s *stubEnv) ForbiddenTo(_, id string) bool                { return s.forbidden[id] }
func (s *stubEnv) ReservedByOther(id, _ string) bool            { return s.reserved[id] }
func (s *stubEnv) PathCost(_ model.Vec3i, id string) (float64, bool) {
	c, ok := s.pathCost[id]
	return c, ok
}

type fixedScorer map[string]float64

func (f fixedScorer) Score(g *model.GearItem, _, _ string) float64 { return f[g.ID] }

type noCooldown struct{}

func (noCooldown) OnCooldown(string, uint64) bool { return false }
func (noCooldown) SetCooldown(string, uint64)     {}

type cooled map[string]bool

func (c cooled) OnCooldown(id string, _ uint64) bool { return c[id] }
func (c cooled) SetCooldown(id string, _ uint64)     { c[id] = true }

func params() Params {
	return Params{
		Capability:     "MINING",
		CurrentScore:   1.0,
		MinGainPct:     0.10,
		Radius:         48,
		PathCostBudget: 100,
		SameCellPathCost: 1,
		Epsilon:        0.001,
	}
}

func items(ids ...string) map[string]*model.GearItem {
	m := map[string]*model.GearItem{}
	for _, id := range ids {
		m[id] = &model.GearItem{ID: id, Type: "PICKAXE"}
	}
	return m
}

func TestEarlierTierShortCircuits(t *testing.T) {
	env := &stubEnv{
		items:    items("INV", "FAR"),
		near:     []string{"FAR"},
		pathCost: map[string]float64{"FAR": 5},
	}
	a := &model.Agent{ID: "A1", Inventory: []string{"INV"}}
	sc := fixedScorer{"INV": 1.2, "FAR": 9.0}
	c, ok := FindBestCandidate(env, sc, noCooldown{}, a, params(), 0)
	if !ok {
		t.Fatalf("expected candidate")
	}
	if c.GearID != "INV" || c.Tier != TierInventory {
		t.Fatalf("inventory tier should win despite lower score: %#v", c)
	}
	if c.PathCost != 0 {
		t.Fatalf("owned candidates cost 0: %#v", c)
	}
}

func TestFiltersSkipUnusable(t *testing.T) {
	env := &stubEnv{
		items:     items("CD", "FORB", "RES", "UNREACH", "OVER", "OK"),
		near:      []string{"CD", "FORB", "RES", "UNREACH", "OVER", "OK"},
		pathCost:  map[string]float64{"CD": 1, "FORB": 1, "RES": 1, "UNREACH": 1, "OVER": 500, "OK": 9},
		forbidden: map[string]bool{"FORB": true},
		reserved:  map[string]bool{"RES": true},
		unreach:   map[string]bool{"UNREACH": true},
	}
	a := &model.Agent{ID: "A1"}
	sc := fixedScorer{"CD": 9, "FORB": 9, "RES": 9, "UNREACH": 9, "OVER": 9, "OK": 2.0}
	c, ok := FindBestCandidate(env, sc, cooled{"CD": true}, a, params(), 0)
	if !ok || c.GearID != "OK" {
		t.Fatalf("expected only OK to survive filters, got %#v ok=%v", c, ok)
	}
	if c.Tier != TierAnywhere || c.PathCost != 9 {
		t.Fatalf("unexpected tier/cost: %#v", c)
	}
}

func TestGainThresholdRejects(t *testing.T) {
	env := &stubEnv{
		items:    items("G1"),
		near:     []string{"G1"},
		pathCost: map[string]float64{"G1": 1},
	}
	a := &model.Agent{ID: "A1"}
	p := params() // current 1.0, min gain 10%
	sc := fixedScorer{"G1": 1.05}
	if _, ok := FindBestCandidate(env, sc, noCooldown{}, a, p, 0); ok {
		t.Fatalf("5%% gain must not pass a 10%% threshold")
	}
	sc = fixedScorer{"G1": 1.2}
	c, ok := FindBestCandidate(env, sc, noCooldown{}, a, p, 0)
	if !ok {
		t.Fatalf("20%% gain should pass")
	}
	if c.GainPct < 0.19 || c.GainPct > 0.21 {
		t.Fatalf("unexpected gain pct: %v", c.GainPct)
	}
}

func TestNeedsRescueAcceptsAnyImprovement(t *testing.T) {
	env := &stubEnv{
		items:    items("G1"),
		near:     []string{"G1"},
		pathCost: map[string]float64{"G1": 1},
	}
	a := &model.Agent{ID: "A1"}
	p := params()
	p.CurrentScore = 0 // at baseline
	sc := fixedScorer{"G1": 0.05}
	c, ok := FindBestCandidate(env, sc, noCooldown{}, a, p, 0)
	if !ok || c.GearID != "G1" {
		t.Fatalf("rescue mode should accept any improvement, got ok=%v", ok)
	}
}

func TestTransientSkipsSetCooldown(t *testing.T) {
	env := &stubEnv{
		items:    items("RES"),
		near:     []string{"RES"},
		pathCost: map[string]float64{"RES": 1},
		reserved: map[string]bool{"RES": true},
	}
	a := &model.Agent{ID: "A1"}
	p := params()
	p.CooldownTicks = 600
	cd := cooled{}
	if _, ok := FindBestCandidate(env, fixedScorer{"RES": 9}, cd, a, p, 0); ok {
		t.Fatalf("reserved item must be skipped")
	}
	if !cd["RES"] {
		t.Fatalf("skip should record a cooldown")
	}
}

func TestTieBreakPrefersCheaperPath(t *testing.T) {
	env := &stubEnv{
		items:    items("NEAR", "FAR"),
		near:     []string{"FAR", "NEAR"},
		pathCost: map[string]float64{"NEAR": 2, "FAR": 40},
	}
	a := &model.Agent{ID: "A1"}
	sc := fixedScorer{"NEAR": 2.0, "FAR": 2.0}
	c, ok := FindBestCandidate(env, sc, noCooldown{}, a, params(), 0)
	if !ok || c.GearID != "NEAR" {
		t.Fatalf("equal scores should go to the cheaper path, got %#v", c)
	}
}

func TestCarriedItemsSkippedInWorldTiers(t *testing.T) {
	env := &stubEnv{
		items:    items("HELD"),
		near:     []string{"HELD"},
		pathCost: map[string]float64{"HELD": 1},
	}
	a := &model.Agent{ID: "A1", Equipped: "HELD"}
	sc := fixedScorer{"HELD": 9}
	// HELD is the equipped item: it is evaluated in the equipped tier, and
	// must not reappear as a world candidate.
	c, ok := FindBestCandidate(env, sc, noCooldown{}, a, params(), 0)
	if !ok || c.Tier != TierEquipped {
		t.Fatalf("expected equipped tier result, got %#v ok=%v", c, ok)
	}
}
