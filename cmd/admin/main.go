// Command admin queries a world's decision index database. It opens the
// sqlite file directly, so run it against a stopped world or a copy.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gearcraft.ai/internal/persistence/indexdb"
	"gearcraft.ai/internal/protocol"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "agent":
			agentCmd(os.Args[2:])
			return
		case "gear":
			gearCmd(os.Args[2:])
			return
		case "counts":
			countsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

func openIndex(dataDir, worldID string) *indexdb.SQLiteIndex {
	if worldID == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	path := filepath.Join(dataDir, "worlds", worldID, "index.db")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	return idx
}

func agentCmd(args []string) {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	agentID := fs.String("id", "", "agent id")
	limit := fs.Int("limit", 50, "max events (newest first)")
	_ = fs.Parse(args)

	if *agentID == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	idx := openIndex(*dataDir, *worldID)
	defer idx.Close()

	events, err := idx.DecisionsForAgent(*agentID, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printEvents(events)
}

func gearCmd(args []string) {
	fs := flag.NewFlagSet("gear", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	gearID := fs.String("id", "", "gear item id")
	limit := fs.Int("limit", 50, "max events (oldest first)")
	_ = fs.Parse(args)

	if *gearID == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	idx := openIndex(*dataDir, *worldID)
	defer idx.Close()

	events, err := idx.DecisionsForGear(*gearID, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printEvents(events)
}

func countsCmd(args []string) {
	fs := flag.NewFlagSet("counts", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	_ = fs.Parse(args)

	idx := openIndex(*dataDir, *worldID)
	defer idx.Close()

	counts, err := idx.CountByType()
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("%-18s %d\n", t, counts[t])
	}
}

func printEvents(events []protocol.DecisionEvent) {
	for _, ev := range events {
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
		if ev.GainPct != 0 {
			line += fmt.Sprintf(" gain=%.1f%%", ev.GainPct)
		}
		if ev.Code != "" {
			line += " code=" + ev.Code
		}
		fmt.Println(line)
	}
}
