package worldtest

import (
	"testing"

	"gearcraft.ai/internal/sim/tuning"
	"gearcraft.ai/internal/sim/world/feature/gear"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

// Recently upgrading to a type raises the bar for that type again: a +3%
// axe right after an axe upgrade is never worth the churn.
func TestRecentTypeUpgradeIsDamped(t *testing.T) {
	tun := tuning.Default() // minGain 10%, hysteresis window 5000, extra 5%
	f := NewFixture(tun, []string{"WOODCUTTING"})
	f.SetFactor("AXE_A", "WOODCUTTING", 1.00)
	f.SetFactor("AXE_B", "WOODCUTTING", 1.03)

	a := f.AddAgent("A1", model.Vec3i{}, 3)
	f.GiveGear(a, "CUR", "AXE_A")
	f.PlaceGear("CAND", "AXE_B", model.Vec3i{X: 2})
	f.Eng.State().RecordUpgrade("A1", "AXE_B", 0)

	if f.Eng.TryUpgradeFor(a, "WOODCUTTING", gear.Options{}, 100) {
		t.Fatalf("+3%% gain must not pass")
	}
	if a.CurrentTask != nil || len(a.Queue) != 0 {
		t.Fatalf("policy rejection must leave no side effects")
	}
}

// Inside the window, gain above the base threshold but below base+extra is
// still rejected for the same type; past the window the base threshold rules.
func TestHysteresisWindowExpires(t *testing.T) {
	tun := tuning.Default()
	f := NewFixture(tun, []string{"WOODCUTTING"})
	f.SetFactor("AXE_A", "WOODCUTTING", 1.00)
	f.SetFactor("AXE_B", "WOODCUTTING", 1.12)

	a := f.AddAgent("A1", model.Vec3i{}, 3)
	f.GiveGear(a, "CUR", "AXE_A")
	f.PlaceGear("CAND", "AXE_B", model.Vec3i{X: 2})
	f.Eng.State().RecordUpgrade("A1", "AXE_B", 0)

	if f.Eng.TryUpgradeFor(a, "WOODCUTTING", gear.Options{}, 100) {
		t.Fatalf("12%% < 15%% inside the window")
	}
	if !f.Eng.TryUpgradeFor(a, "WOODCUTTING", gear.Options{}, 5001) {
		t.Fatalf("12%% > 10%% once the window expired")
	}
}
