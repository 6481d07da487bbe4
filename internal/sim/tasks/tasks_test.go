package tasks

import "testing"

func TestClassificationTable(t *testing.T) {
	if !IsGearKind(KindEquip) || !IsGearKind(KindDropHeld) {
		t.Fatalf("expected gear kinds")
	}
	if IsGearKind(Kind("MINE")) {
		t.Fatalf("foreign kind classified as gear")
	}
	if !IsAcquisition(KindTransportToInventory) || IsEviction(KindTransportToInventory) {
		t.Fatalf("transport misclassified")
	}
	if !IsEviction(KindHaulToLocation) || IsAcquisition(KindHaulToLocation) {
		t.Fatalf("haul misclassified")
	}
}

func TestEquivalent(t *testing.T) {
	eq := &GearTask{TaskID: "T1", Kind: KindEquip, GearID: "G1"}
	if !eq.Equivalent(KindEquip, "G1") {
		t.Fatalf("same kind+target should be equivalent")
	}
	if !eq.Equivalent(KindTransportToInventory, "G1") {
		t.Fatalf("acquisitions of the same item should be equivalent")
	}
	if eq.Equivalent(KindEquip, "G2") {
		t.Fatalf("different target must not be equivalent")
	}
	if eq.Equivalent(KindDropHeld, "G1") {
		t.Fatalf("acquisition vs eviction must not be equivalent")
	}
	var nilTask *GearTask
	if nilTask.Equivalent(KindEquip, "G1") {
		t.Fatalf("nil task must not be equivalent")
	}
}
