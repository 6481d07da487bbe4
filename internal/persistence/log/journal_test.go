package log

import (
	"testing"

	"gearcraft.ai/internal/protocol"
)

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewDecisionJournal(dir)

	want := []protocol.DecisionEvent{
		{Tick: 1, Type: protocol.EventUpgradeQueued, AgentID: "A1", Capability: "MINING", GearID: "G1", GainPct: 0.5},
		{Tick: 2, Type: protocol.EventEvictionQueued, AgentID: "A1", VictimID: "G0", TaskID: "task-2"},
		{Tick: 3, Type: protocol.EventCooldownSet, AgentID: "A2", GearID: "G1", Code: "E_RESERVED"},
	}
	for _, ev := range want {
		j.Record(ev)
	}
	if n, err := j.Dropped(); n != 0 || err != nil {
		t.Fatalf("dropped=%d err=%v", n, err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d mismatch: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestReadAllMissingDirIsEmpty(t *testing.T) {
	got, err := ReadAll(t.TempDir())
	if err != nil || got != nil {
		t.Fatalf("expected empty read, got %v err=%v", got, err)
	}
}
