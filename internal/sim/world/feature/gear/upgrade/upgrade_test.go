package upgrade

import (
	"testing"

	"gearcraft.ai/internal/sim/tasks"
	"gearcraft.ai/internal/sim/world/feature/gear/runtime"
	"gearcraft.ai/internal/sim/world/feature/gear/sched"
	"gearcraft.ai/internal/sim/world/feature/gear/search"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

type stubEnv struct {
	items    map[string]*model.GearItem
	near     []string
	pathCost map[string]float64
}

func (s *stubEnv) Load(id string) (*model.GearItem, bool) {
	g, ok := s.items[id]
	return g, ok
}
func (s *stubEnv) GearAtCell(model.Vec3i) []string           { return nil }
func (s *stubEnv) StorageGearNear(model.Vec3i, int) []string { return nil }
func (s *stubEnv) RegionGear(string) []string                { return nil }
func (s *stubEnv) GearNear(model.Vec3i, int) []string        { return s.near }
func (s *stubEnv) Reachable(_, _ string) bool                { return true }
func (s *stubEnv) ForbiddenTo(_, _ string) bool              { return false }
func (s *stubEnv) ReservedByOther(_, _ string) bool          { return false }
func (s *stubEnv) PathCost(_ model.Vec3i, id string) (float64, bool) {
	c, ok := s.pathCost[id]
	return c, ok
}

type fixedScorer map[string]float64

func (f fixedScorer) Score(g *model.GearItem, _, _ string) float64 { return f[g.ID] }

func (f fixedScorer) BestCarried(a *model.Agent, _ string, load func(string) (*model.GearItem, bool)) (string, float64) {
	bestID, best := "", 0.0
	for _, id := range a.CarriedIDs() {
		if s := f[id]; s > best {
			bestID, best = id, s
		}
	}
	return bestID, best
}

type recordingOrch struct {
	calls   int
	lastCap string
	lastID  string
	out     runtime.Outcome
}

func (r *recordingOrch) QueueAcquisition(_ *model.Agent, capability string, cand search.Candidate, _ runtime.Priority, _ uint64) runtime.Outcome {
	r.calls++
	r.lastCap = capability
	r.lastID = cand.GearID
	return r.out
}

func options() Options {
	return Options{
		MinGainPct:             0.10,
		Radius:                 48,
		PathCostBudget:         100,
		SameCellPathCost:       1,
		Epsilon:                0.001,
		SameFamilyExtraGainPct: 0.10,
		HysteresisWindowTicks:  5000,
		HysteresisExtraGainPct: 0.15,
		FocusWindowTicks:       250,
	}
}

func agent() *model.Agent {
	a := &model.Agent{ID: "A1", Autonomous: true, CanManipulate: true}
	a.InitDefaults()
	return a
}

func worldWith(defs ...*model.GearItem) *stubEnv {
	env := &stubEnv{items: map[string]*model.GearItem{}, pathCost: map[string]float64{}}
	for _, g := range defs {
		env.items[g.ID] = g
		if g.Holder == model.HolderWorld {
			env.near = append(env.near, g.ID)
			env.pathCost[g.ID] = 3
		}
	}
	return env
}

func TestIneligibleAgentsAreSkipped(t *testing.T) {
	env := worldWith(&model.GearItem{ID: "G1", Type: "PICKAXE", Holder: model.HolderWorld})
	st := sched.NewState()
	orch := &recordingOrch{}

	for _, mut := range []func(*model.Agent){
		func(a *model.Agent) { a.Incapacitated = true },
		func(a *model.Agent) { a.Asleep = true },
		func(a *model.Agent) { a.Autonomous = false },
		func(a *model.Agent) { a.CanManipulate = false },
	} {
		a := agent()
		mut(a)
		d := TryUpgradeFor(env, fixedScorer{"G1": 5}, st, orch, a, "MINING", options(), 100)
		if d.Handled || d.Code != CodeIneligible {
			t.Fatalf("expected ineligible, got %#v", d)
		}
	}
	if orch.calls != 0 {
		t.Fatalf("orchestrator must not run for ineligible agents")
	}
}

func TestFocusBlocksOtherCapabilities(t *testing.T) {
	env := worldWith(&model.GearItem{ID: "G1", Type: "AXE", Holder: model.HolderWorld})
	st := sched.NewState()
	st.SetFocus("A1", "MINING", 500)
	orch := &recordingOrch{out: runtime.Outcome{Enqueued: true}}

	d := TryUpgradeFor(env, fixedScorer{"G1": 5}, st, orch, agent(), "WOODCUTTING", options(), 100)
	if d.Handled || d.Code != CodeFocus {
		t.Fatalf("expected focus block, got %#v", d)
	}
	// The focused capability itself may still proceed.
	d = TryUpgradeFor(env, fixedScorer{"G1": 5}, st, orch, agent(), "MINING", options(), 100)
	if !d.Handled {
		t.Fatalf("focused capability should pass, got %#v", d)
	}
}

func TestInFlightTaskReportsHandled(t *testing.T) {
	env := worldWith(&model.GearItem{ID: "G1", Type: "PICKAXE", Holder: model.HolderWorld})
	st := sched.NewState()
	orch := &recordingOrch{}
	a := agent()
	a.CurrentTask = &tasks.GearTask{TaskID: "T1", Kind: tasks.KindTransportToInventory, GearID: "OTHER"}

	d := TryUpgradeFor(env, fixedScorer{"G1": 5}, st, orch, a, "MINING", options(), 100)
	if !d.Handled || d.Code != CodeInFlight {
		t.Fatalf("in-flight gear work should report handled, got %#v", d)
	}
	if orch.calls != 0 {
		t.Fatalf("no new work while a gear task is in flight")
	}
}

func TestReentrancyGuard(t *testing.T) {
	env := worldWith(&model.GearItem{ID: "G1", Type: "PICKAXE", Holder: model.HolderWorld})
	st := sched.NewState()
	st.BeginEvaluation("A1")
	orch := &recordingOrch{}

	d := TryUpgradeFor(env, fixedScorer{"G1": 5}, st, orch, agent(), "MINING", options(), 100)
	if d.Handled || d.Code != CodeReentrant {
		t.Fatalf("expected re-entrancy block, got %#v", d)
	}
	st.EndEvaluation("A1")
	orch.out = runtime.Outcome{Enqueued: true}
	if d := TryUpgradeFor(env, fixedScorer{"G1": 5}, st, orch, agent(), "MINING", options(), 100); !d.Handled {
		t.Fatalf("guard must clear after evaluation ends, got %#v", d)
	}
}

func TestSameFamilyNeedsExtraGain(t *testing.T) {
	cur := &model.GearItem{ID: "CUR", Type: "PICKAXE", Family: "PICK", Holder: model.HolderEquipped}
	cand := &model.GearItem{ID: "CAND", Type: "PICKAXE", Family: "PICK", Holder: model.HolderWorld}
	env := worldWith(cur, cand)
	st := sched.NewState()
	orch := &recordingOrch{out: runtime.Outcome{Enqueued: true}}
	a := agent()
	a.Equipped = "CUR"

	// 15% gain clears the base 10% threshold but not 10%+10%.
	d := TryUpgradeFor(env, fixedScorer{"CUR": 1.0, "CAND": 1.15}, st, orch, a, "MINING", options(), 100)
	if d.Handled || d.Code != CodeFamilyLock {
		t.Fatalf("expected family lock, got %#v", d)
	}
	// 25% clears both.
	d = TryUpgradeFor(env, fixedScorer{"CUR": 1.0, "CAND": 1.25}, st, orch, a, "MINING", options(), 100)
	if !d.Handled || orch.lastID != "CAND" {
		t.Fatalf("expected same-family upgrade with enough gain, got %#v", d)
	}
}

func TestCrossFamilyIgnoresFamilyLock(t *testing.T) {
	cur := &model.GearItem{ID: "CUR", Type: "ROCK", Family: "IMPROV", Holder: model.HolderEquipped}
	cand := &model.GearItem{ID: "CAND", Type: "PICKAXE", Family: "PICK", Holder: model.HolderWorld}
	env := worldWith(cur, cand)
	st := sched.NewState()
	orch := &recordingOrch{out: runtime.Outcome{Enqueued: true}}
	a := agent()
	a.Equipped = "CUR"

	d := TryUpgradeFor(env, fixedScorer{"CUR": 1.0, "CAND": 1.15}, st, orch, a, "MINING", options(), 100)
	if !d.Handled {
		t.Fatalf("cross-family upgrade should not need extra gain, got %#v", d)
	}
}

func TestHysteresisDampensSameType(t *testing.T) {
	cand := &model.GearItem{ID: "CAND", Type: "PICKAXE", Holder: model.HolderWorld}
	env := worldWith(cand)
	st := sched.NewState()
	st.RecordUpgrade("A1", "PICKAXE", 100)
	orch := &recordingOrch{out: runtime.Outcome{Enqueued: true}}
	a := agent()
	a.Inventory = []string{"CUR"}
	env.items["CUR"] = &model.GearItem{ID: "CUR", Type: "HAMMER", Holder: model.HolderInventory}

	// 15% beats 10% but not 10%+15% inside the window.
	sc := fixedScorer{"CUR": 1.0, "CAND": 1.15}
	d := TryUpgradeFor(env, sc, st, orch, a, "MINING", options(), 200)
	if d.Handled || d.Code != CodeHysteresis {
		t.Fatalf("expected hysteresis block, got %#v", d)
	}
	// Outside the window the base threshold applies again.
	d = TryUpgradeFor(env, sc, st, orch, a, "MINING", options(), 100+5000)
	if !d.Handled {
		t.Fatalf("expired hysteresis window should not block, got %#v", d)
	}
}

func TestSuccessRecordsHysteresisAndFocus(t *testing.T) {
	cand := &model.GearItem{ID: "CAND", Type: "AXE", Holder: model.HolderWorld}
	env := worldWith(cand)
	st := sched.NewState()
	orch := &recordingOrch{out: runtime.Outcome{Enqueued: true, TaskID: "T1"}}

	d := TryUpgradeFor(env, fixedScorer{"CAND": 2.0}, st, orch, agent(), "WOODCUTTING", options(), 1000)
	if !d.Handled || d.Outcome.TaskID != "T1" {
		t.Fatalf("expected queued upgrade, got %#v", d)
	}
	h, ok := st.HysteresisFor("A1")
	if !ok || h.LastGearType != "AXE" || h.LastUpgradeTick != 1000 {
		t.Fatalf("hysteresis not recorded: %#v ok=%v", h, ok)
	}
	if !st.FocusBlocks("A1", "MINING", 1100) {
		t.Fatalf("focus window should block other capabilities")
	}
	if st.FocusBlocks("A1", "MINING", 1000+300) {
		t.Fatalf("focus window should expire")
	}
}

func TestOrchestratorRejectionPassesThrough(t *testing.T) {
	cand := &model.GearItem{ID: "CAND", Type: "AXE", Holder: model.HolderWorld}
	env := worldWith(cand)
	st := sched.NewState()
	orch := &recordingOrch{out: runtime.Outcome{Code: runtime.CodeGone}}

	d := TryUpgradeFor(env, fixedScorer{"CAND": 2.0}, st, orch, agent(), "WOODCUTTING", options(), 1000)
	if d.Handled || d.Code != runtime.CodeGone {
		t.Fatalf("expected pass-through failure code, got %#v", d)
	}
	if _, ok := st.HysteresisFor("A1"); ok {
		t.Fatalf("failed orchestration must not record hysteresis")
	}
}

func TestDeferredEvictionStillHandled(t *testing.T) {
	cand := &model.GearItem{ID: "CAND", Type: "AXE", Holder: model.HolderWorld}
	env := worldWith(cand)
	st := sched.NewState()
	orch := &recordingOrch{out: runtime.Outcome{Deferred: true, VictimID: "OLD"}}

	d := TryUpgradeFor(env, fixedScorer{"CAND": 2.0}, st, orch, agent(), "WOODCUTTING", options(), 1000)
	if !d.Handled || d.Outcome.VictimID != "OLD" {
		t.Fatalf("deferred eviction counts as handled, got %#v", d)
	}
}
