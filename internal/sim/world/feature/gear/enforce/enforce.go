// Package enforce brings an agent back under its carry limit in one pass.
// It ranks everything carried and queues drops for the overflow, regardless
// of hysteresis or focus windows. Running it twice in the same tick queues
// nothing new.
package enforce

import (
	"sort"

	"gearcraft.ai/internal/sim/world/feature/gear/carry"
	"gearcraft.ai/internal/sim/world/feature/gear/runtime"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

type Evictor interface {
	QueueEviction(a *model.Agent, victimID string, pr runtime.Priority, nowTick uint64) (string, bool)
}

// EnforceNow queues front-of-queue evictions until the agent's real carried
// gear fits within allowed slots. keeperID, when carried, is kept no matter
// how it ranks. Returns the number of evictions queued by this call.
func EnforceNow(a *model.Agent, load carry.Loader, sc carry.Scorer, ev Evictor, coreCaps []string, keeperID string, allowed int, nowTick uint64) int {
	if a == nil {
		return 0
	}
	if allowed < 1 {
		allowed = 1
	}
	carried := carry.CarriedReal(a, load)
	if len(carried) <= allowed {
		return 0
	}

	type ranked struct {
		id    string
		score float64
	}
	rs := make([]ranked, 0, len(carried))
	for _, id := range carried {
		g, ok := load(id)
		if !ok {
			continue
		}
		rs = append(rs, ranked{id, carry.OverallScore(g, a.ID, sc, coreCaps)})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].id == keeperID {
			return true
		}
		if rs[j].id == keeperID {
			return false
		}
		if rs[i].score != rs[j].score {
			return rs[i].score > rs[j].score
		}
		return rs[i].id < rs[j].id
	})

	queued := 0
	for i := allowed; i < len(rs); i++ {
		if a.QueuedEvictionFor(rs[i].id) {
			continue
		}
		if _, ok := ev.QueueEviction(a, rs[i].id, runtime.Front, nowTick); ok {
			queued++
		}
	}
	return queued
}
