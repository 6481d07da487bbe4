package worldtest

import (
	"testing"

	"gearcraft.ai/internal/sim/tuning"
	"gearcraft.ai/internal/sim/world/feature/gear"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Save-time cleanup: clearing transient state releases world reservations
// and forgets cooldowns, so a fresh session starts from a clean slate.
func TestClearTransientStateReleasesEverything(t *testing.T) {
	f := NewFixture(tuning.Default(), []string{"MINING"})
	f.SetFactor("IRON_PICK", "MINING", 5.0)

	a := f.AddAgent("A1", model.Vec3i{}, 2)
	f.PlaceGear("G1", "IRON_PICK", model.Vec3i{X: 3})

	if !f.Eng.TryUpgradeFor(a, "MINING", gear.Options{}, f.W.Tick()) {
		t.Fatalf("acquisition should queue")
	}
	if !f.W.ReservedByOther("G1", "someone-else") {
		t.Fatalf("reservation expected while the task is pending")
	}

	f.Eng.ClearTransientState()
	if f.W.ReservedByOther("G1", "someone-else") {
		t.Fatalf("reservation should be released")
	}
	if f.Eng.State().OnCooldown("G1", f.W.Tick()) {
		t.Fatalf("cooldowns should be cleared")
	}
	if _, ok := f.Eng.State().HysteresisFor("A1"); ok {
		t.Fatalf("hysteresis should be cleared")
	}
}
