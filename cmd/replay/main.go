// Command replay reads a world's decision journal and prints the decision
// timeline, optionally filtered. It works from the compressed journal files
// alone; no database is needed.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "gearcraft.ai/internal/persistence/log"
	"gearcraft.ai/internal/protocol"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		worldID  = flag.String("world", "world_1", "world id")
		agentID  = flag.String("agent", "", "only events for this agent")
		gearID   = flag.String("gear", "", "only events touching this gear item")
		evType   = flag.String("type", "", "only events of this type (e.g. UPGRADE_QUEUED)")
		fromTick = flag.Uint64("from_tick", 0, "start at tick (inclusive)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, 0 = no limit)")
		summary  = flag.Bool("summary", false, "print per-type counts instead of the timeline")
	)
	flag.Parse()

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	events, err := persistlog.ReadAll(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "no journal entries under", worldDir)
		os.Exit(1)
	}

	counts := map[string]int{}
	var shown int
	for _, ev := range events {
		if !match(ev, *agentID, *gearID, *evType, *fromTick, *toTick) {
			continue
		}
		counts[ev.Type]++
		shown++
		if *summary {
			continue
		}
		printEvent(ev)
	}

	if *summary {
		for _, t := range protocol.EventTypes() {
			if counts[t] > 0 {
				fmt.Printf("%-18s %d\n", t, counts[t])
			}
		}
	}
	fmt.Fprintf(os.Stderr, "%d of %d events matched\n", shown, len(events))
}

func match(ev protocol.DecisionEvent, agentID, gearID, evType string, fromTick, toTick uint64) bool {
	if agentID != "" && ev.AgentID != agentID {
		return false
	}
	if gearID != "" && ev.GearID != gearID && ev.VictimID != gearID {
		return false
	}
	if evType != "" && ev.Type != evType {
		return false
	}
	if ev.Tick < fromTick {
		return false
	}
	if toTick != 0 && ev.Tick > toTick {
		return false
	}
	return true
}

func printEvent(ev protocol.DecisionEvent) {
	line := fmt.Sprintf("t=%-8d %-18s agent=%s", ev.Tick, ev.Type, ev.AgentID)
	if ev.Capability != "" {
		line += " cap=" + ev.Capability
	}
	if ev.GearID != "" {
		line += " gear=" + ev.GearID
	}
	if ev.VictimID != "" {
		line += " victim=" + ev.VictimID
	}
	if ev.TaskID != "" {
		line += " task=" + ev.TaskID
	}
	if ev.GainPct != 0 {
		line += fmt.Sprintf(" gain=%.1f%%", ev.GainPct)
	}
	if ev.Code != "" {
		line += " code=" + ev.Code
	}
	if ev.Evicted != 0 {
		line += fmt.Sprintf(" evicted=%d", ev.Evicted)
	}
	fmt.Println(line)
}
