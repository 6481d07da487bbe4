// Package runtime turns accepted upgrade decisions into queued or
// immediately-started gear tasks, with de-duplication, reservation, and a
// single direct-acquisition fallback.
package runtime

import (
	"log"

	"gearcraft.ai/internal/protocol"
	"gearcraft.ai/internal/sim/tasks"
	"gearcraft.ai/internal/sim/world/feature/gear/carry"
	"gearcraft.ai/internal/sim/world/feature/gear/sched"
	"gearcraft.ai/internal/sim/world/feature/gear/search"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

type Priority int

const (
	// Append never preempts or jumps the agent's queue; opportunistic.
	Append Priority = iota
	// Front places the task ahead of queued work; used for rescue and
	// ordered acquisitions.
	Front
)

// Failure codes surfaced in Outcome.Code. Transient codes set a candidate
// cooldown; policy codes do not.
const (
	CodeBusy        = "E_BUSY"
	CodeGone        = "E_GONE"
	CodeForbidden   = "E_FORBIDDEN"
	CodeUnreachable = "E_UNREACHABLE"
	CodeOffMap      = "E_OFF_MAP"
	CodeContested   = "E_CONTESTED"
	CodeReserved    = "E_RESERVED"
	CodeNoVictim    = "E_NO_VICTIM"
)

// Env is the task/reservation surface owned by the surrounding simulation.
type Env interface {
	Load(gearID string) (*model.GearItem, bool)
	NewTaskID() string
	Reachable(agentID, gearID string) bool
	ForbiddenTo(agentID, gearID string) bool
	SameMap(agentID, gearID string) bool
	Reserve(gearID, agentID, taskID string) bool
	Release(gearID, agentID, taskID string)
	// DirectAcquire bypasses the task queue and immediately moves the item
	// into the agent's inventory. Last-resort fallback, tried at most once
	// per acquisition attempt.
	DirectAcquire(agentID, gearID string) bool
}

type EventSink interface {
	Record(protocol.DecisionEvent)
}

type Config struct {
	DifficultyCap        int
	CarryGearMin         int
	CoreCaps             []string
	RecentAcqShieldTicks uint64
	CooldownTicks        uint64
}

type Orchestrator struct {
	env  Env
	sc   carry.Scorer
	st   *sched.State
	cfg  Config
	log  *log.Logger
	sink EventSink
}

func New(env Env, sc carry.Scorer, st *sched.State, cfg Config, logger *log.Logger, sink EventSink) *Orchestrator {
	return &Orchestrator{env: env, sc: sc, st: st, cfg: cfg, log: logger, sink: sink}
}

type Outcome struct {
	Enqueued bool
	// Deferred means only the eviction was queued this pass; the acquisition
	// is retried after it completes.
	Deferred bool
	TaskID   string
	VictimID string
	Code     string
}

func (o *Orchestrator) emit(ev protocol.DecisionEvent) {
	if o.sink != nil {
		o.sink.Record(ev)
	}
}

func (o *Orchestrator) coolDown(gearID, agentID string, nowTick uint64, code string) {
	o.st.SetCooldown(gearID, nowTick+o.cfg.CooldownTicks)
	o.emit(protocol.DecisionEvent{
		Tick: nowTick, Type: protocol.EventCooldownSet,
		AgentID: agentID, GearID: gearID, Code: code,
	})
}

// QueueAcquisition translates an accepted candidate into tasks. capability
// is the work statistic the acquisition serves. Any validation failure
// aborts without partial state beyond reservations, which are released.
func (o *Orchestrator) QueueAcquisition(a *model.Agent, capability string, cand search.Candidate, pr Priority, nowTick uint64) Outcome {
	if a == nil || cand.GearID == "" {
		return Outcome{Code: CodeGone}
	}

	// An equivalent task already queued: start it if the agent is idle
	// rather than stacking a duplicate.
	if q, ok := a.QueuedEquivalent(tasks.KindEquip, cand.GearID); ok {
		if a.CurrentTask == nil {
			a.TryStartNow(q)
		}
		return Outcome{Enqueued: true, TaskID: q.TaskID}
	}

	// Opportunistic acquisitions wait for an idle agent.
	if pr == Append && a.CurrentTask != nil {
		return Outcome{Code: CodeBusy}
	}

	g, ok := o.env.Load(cand.GearID)
	if !ok || g.Destroyed {
		o.coolDown(cand.GearID, a.ID, nowTick, CodeGone)
		return Outcome{Code: CodeGone}
	}
	if g.Held() && g.HolderID != a.ID {
		o.coolDown(cand.GearID, a.ID, nowTick, CodeContested)
		return Outcome{Code: CodeContested}
	}
	if o.env.ForbiddenTo(a.ID, cand.GearID) {
		o.coolDown(cand.GearID, a.ID, nowTick, CodeForbidden)
		return Outcome{Code: CodeForbidden}
	}
	if !o.env.SameMap(a.ID, cand.GearID) {
		o.coolDown(cand.GearID, a.ID, nowTick, CodeOffMap)
		return Outcome{Code: CodeOffMap}
	}
	if !a.Carries(cand.GearID) && !o.env.Reachable(a.ID, cand.GearID) {
		o.coolDown(cand.GearID, a.ID, nowTick, CodeUnreachable)
		return Outcome{Code: CodeUnreachable}
	}

	// Capacity first: when eviction is needed, queue only the eviction this
	// pass and let the caller retry the acquisition after it completes.
	shield := func(id string) bool { return o.st.IsShielded(a.ID, id, nowTick) }
	res := carry.EnsureCapacity(a, cand.GearID, o.env.Load, o.sc, o.cfg.CoreCaps, shield, capability, o.cfg.DifficultyCap, o.cfg.CarryGearMin)
	if res.NeedEvict {
		if res.VictimID == "" {
			return Outcome{Code: CodeNoVictim}
		}
		taskID, queued := o.QueueEviction(a, res.VictimID, pr, nowTick)
		if !queued {
			// Eviction already pending; acquisition still deferred.
			return Outcome{Deferred: true, VictimID: res.VictimID}
		}
		return Outcome{Deferred: true, TaskID: taskID, VictimID: res.VictimID}
	}

	taskID := o.env.NewTaskID()
	if !o.env.Reserve(cand.GearID, a.ID, taskID) {
		o.coolDown(cand.GearID, a.ID, nowTick, CodeReserved)
		o.emit(protocol.DecisionEvent{
			Tick: nowTick, Type: protocol.EventReservationFail,
			AgentID: a.ID, GearID: cand.GearID, TaskID: taskID,
		})
		return Outcome{Code: CodeReserved}
	}
	o.st.RecordReservation(cand.GearID, a.ID, taskID)

	// Revalidate between reservation and queuing: another agent acting
	// earlier in this tick may have destroyed or snatched the item.
	g, ok = o.env.Load(cand.GearID)
	if !ok || g.Destroyed || (g.Held() && g.HolderID != a.ID) {
		o.env.Release(cand.GearID, a.ID, taskID)
		o.st.DropReservation(cand.GearID)
		if o.env.DirectAcquire(a.ID, cand.GearID) {
			o.st.ShieldRecent(a.ID, cand.GearID, nowTick+o.cfg.RecentAcqShieldTicks)
			return Outcome{Enqueued: true}
		}
		if o.log != nil {
			o.log.Printf("acquisition aborted: gear %s invalid after reserve (agent %s)", cand.GearID, a.ID)
		}
		o.coolDown(cand.GearID, a.ID, nowTick, CodeGone)
		return Outcome{Code: CodeGone}
	}

	kind := tasks.KindTransportToInventory
	if a.Carries(cand.GearID) || (g.Holder == model.HolderWorld && g.Pos == a.Pos) {
		kind = tasks.KindEquip
	}
	t := &tasks.GearTask{TaskID: taskID, Kind: kind, GearID: cand.GearID, StartedTick: nowTick}
	if a.CurrentTask == nil {
		a.TryStartNow(t)
	} else if pr == Front {
		a.EnqueueFront(t)
	} else {
		a.EnqueueBack(t)
	}

	o.st.ShieldRecent(a.ID, cand.GearID, nowTick+o.cfg.RecentAcqShieldTicks)
	return Outcome{Enqueued: true, TaskID: taskID}
}

// QueueEviction queues a drop task for a carried item, de-duplicating
// against evictions already pending. Returns the task id and whether a new
// task was queued.
func (o *Orchestrator) QueueEviction(a *model.Agent, victimID string, pr Priority, nowTick uint64) (string, bool) {
	if a == nil || victimID == "" || !a.Carries(victimID) {
		return "", false
	}
	if a.QueuedEvictionFor(victimID) {
		return "", false
	}
	kind := tasks.KindDropHeld
	if a.Equipped == victimID {
		kind = tasks.KindDropEquipped
	}
	t := &tasks.GearTask{TaskID: o.env.NewTaskID(), Kind: kind, GearID: victimID, StartedTick: nowTick}
	if a.CurrentTask == nil {
		a.TryStartNow(t)
	} else if pr == Front {
		a.EnqueueFront(t)
	} else {
		a.EnqueueBack(t)
	}
	// Recently-dropped protection: keep the victim off the candidate list
	// for a while so the retry does not pick it straight back up.
	o.st.SetCooldown(victimID, nowTick+o.cfg.CooldownTicks)
	o.emit(protocol.DecisionEvent{
		Tick: nowTick, Type: protocol.EventEvictionQueued,
		AgentID: a.ID, VictimID: victimID, TaskID: t.TaskID,
	})
	return t.TaskID, true
}
