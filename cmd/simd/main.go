package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"gearcraft.ai/internal/persistence/indexdb"
	persistlog "gearcraft.ai/internal/persistence/log"
	"gearcraft.ai/internal/protocol"
	"gearcraft.ai/internal/sim/catalogs"
	"gearcraft.ai/internal/sim/scenario"
	"gearcraft.ai/internal/sim/tuning"
	"gearcraft.ai/internal/sim/world"
	"gearcraft.ai/internal/sim/world/feature/gear"
	"gearcraft.ai/internal/transport/decisionfeed"
)

func main() {
	var (
		addr         = flag.String("addr", "127.0.0.1:8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		ticks        = flag.Int("ticks", 0, "run this many ticks then exit (0 = run until signal)")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite decision index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simd] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(filepath.Join(*configDir, "catalog"))
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Default()
	}

	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}
	scen, err := scenario.Load(sp)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	w, err := scen.Build(cats)
	if err != nil {
		logger.Fatalf("build scenario: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", w.Config().ID)
	_ = os.MkdirAll(worldDir, 0o755)

	journal := persistlog.NewDecisionJournal(worldDir)
	defer journal.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open decision index: %v", err)
		}
		defer idx.Close()
		if err := idx.RecordRun(cats, tune); err != nil {
			logger.Printf("decision index: record run: %v", err)
		}
	}

	feed := decisionfeed.NewServer(w.Config().ID, w, logger)

	sinks := fanoutSink{journal, feed}
	if idx != nil {
		sinks = append(sinks, idx)
	}

	eng := gear.New(w, cats.Resolver(), tune, cats.Capabilities.Core, logger, sinks)
	w.SetHooks(world.Hooks{
		GearChanged: func(gearID string) { eng.Scores().InvalidateGear(gearID) },
		AgentCapacityChanged: func(agentID string) {
			if !eng.StrictMode() {
				return
			}
			if a, ok := w.Agent(agentID); ok {
				eng.EnforceNow(a, "", 0, "strict", w.Tick())
			}
		},
	})

	ctx, cancel := signalContext()
	defer cancel()

	go runLoop(ctx, cancel, w, eng, scen, tune, *ticks, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		worldID := w.Config().ID

		fmt.Fprintf(rw, "# HELP gearcraft_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE gearcraft_world_tick gauge\n")
		fmt.Fprintf(rw, "gearcraft_world_tick{world=%q} %d\n", worldID, w.Tick())

		fmt.Fprintf(rw, "# HELP gearcraft_world_agents Agents in the world.\n")
		fmt.Fprintf(rw, "# TYPE gearcraft_world_agents gauge\n")
		fmt.Fprintf(rw, "gearcraft_world_agents{world=%q} %d\n", worldID, len(w.AgentIDs()))

		dropped, _ := journal.Dropped()
		fmt.Fprintf(rw, "# HELP gearcraft_journal_dropped_total Decision events dropped by the journal.\n")
		fmt.Fprintf(rw, "# TYPE gearcraft_journal_dropped_total counter\n")
		fmt.Fprintf(rw, "gearcraft_journal_dropped_total{world=%q} %d\n", worldID, dropped)
	})
	mux.HandleFunc("/v1/feed/bootstrap", feed.BootstrapHandler())
	mux.HandleFunc("/v1/feed/ws", feed.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s agents=%d listening on %s", w.Config().ID, len(w.AgentIDs()), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	eng.ReleaseAllReservations()
	if idx != nil {
		idx.Flush()
		printSummary(idx, logger)
	}
	logger.Printf("stopped at tick=%d", w.Tick())
}

// runLoop drives the simulation: each tick, every focused agent asks for an
// upgrade on its current focus capability, then the world advances. Single
// goroutine; all world and engine access stays here.
func runLoop(ctx context.Context, cancel context.CancelFunc, w *world.World, eng *gear.Engine, scen *scenario.Scenario, tune tuning.Tuning, maxTicks int, logger *log.Logger) {
	defer cancel()

	dur := time.Duration(tune.TickDurationMs) * time.Millisecond
	if dur <= 0 {
		dur = 100 * time.Millisecond
	}
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	ran := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := w.Tick()
		for _, id := range w.AgentIDs() {
			capability, ok := scen.FocusFor(id, now)
			if !ok {
				continue
			}
			a, ok := w.Agent(id)
			if !ok {
				continue
			}
			eng.TryUpgradeFor(a, capability, gear.Options{}, now)
		}
		w.Step()

		ran++
		if maxTicks > 0 && ran >= maxTicks {
			logger.Printf("ran %d ticks", ran)
			return
		}
	}
}

func printSummary(idx *indexdb.SQLiteIndex, logger *log.Logger) {
	counts, err := idx.CountByType()
	if err != nil {
		logger.Printf("summary: %v", err)
		return
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		logger.Printf("decisions %s=%d", t, counts[t])
	}
}

// fanoutSink delivers each decision event to every sink. Sinks never fail
// the caller; each handles its own backpressure.
type fanoutSink []interface{ Record(protocol.DecisionEvent) }

func (f fanoutSink) Record(ev protocol.DecisionEvent) {
	for _, s := range f {
		s.Record(ev)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
