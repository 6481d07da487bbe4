// Package sched owns the engine's transient per-agent and per-item decision
// records: hysteresis, focus windows, recent-acquisition shields, candidate
// cooldowns, reservations taken, and the re-entrancy guard. All windows are
// expressed in simulation ticks. Everything here is clearable on demand;
// records may reference tasks and items that do not survive serialization.
package sched

type Hysteresis struct {
	LastUpgradeTick uint64
	LastGearType    string
}

type Focus struct {
	Capability string
	UntilTick  uint64
}

type RecentAcq struct {
	GearID    string
	UntilTick uint64
}

type Reservation struct {
	AgentID string
	TaskID  string
}

type State struct {
	hysteresis map[string]Hysteresis // by agent id
	focus      map[string]Focus      // by agent id
	recent     map[string]RecentAcq  // by agent id
	cooldown   map[string]uint64     // gear id -> until tick
	reserved   map[string]Reservation
	evaluating map[string]bool // by agent id
}

func NewState() *State {
	s := &State{}
	s.Clear()
	return s
}

// Clear drops every transient record. Called before world serialization.
func (s *State) Clear() {
	s.hysteresis = map[string]Hysteresis{}
	s.focus = map[string]Focus{}
	s.recent = map[string]RecentAcq{}
	s.cooldown = map[string]uint64{}
	s.reserved = map[string]Reservation{}
	s.evaluating = map[string]bool{}
}

func (s *State) RecordUpgrade(agentID, gearType string, nowTick uint64) {
	if agentID == "" {
		return
	}
	s.hysteresis[agentID] = Hysteresis{LastUpgradeTick: nowTick, LastGearType: gearType}
}

func (s *State) HysteresisFor(agentID string) (Hysteresis, bool) {
	h, ok := s.hysteresis[agentID]
	return h, ok
}

func (s *State) SetFocus(agentID, capability string, untilTick uint64) {
	if agentID == "" || capability == "" {
		return
	}
	s.focus[agentID] = Focus{Capability: capability, UntilTick: untilTick}
}

// FocusBlocks reports whether a different capability currently holds the
// agent's focus window.
func (s *State) FocusBlocks(agentID, capability string, nowTick uint64) bool {
	f, ok := s.focus[agentID]
	if !ok || nowTick >= f.UntilTick {
		return false
	}
	return f.Capability != capability
}

func (s *State) ShieldRecent(agentID, gearID string, untilTick uint64) {
	if agentID == "" || gearID == "" {
		return
	}
	s.recent[agentID] = RecentAcq{GearID: gearID, UntilTick: untilTick}
}

// IsShielded reports whether the item is the agent's protected recent
// acquisition.
func (s *State) IsShielded(agentID, gearID string, nowTick uint64) bool {
	r, ok := s.recent[agentID]
	if !ok || nowTick >= r.UntilTick {
		return false
	}
	return r.GearID == gearID
}

func (s *State) SetCooldown(gearID string, untilTick uint64) {
	if gearID == "" {
		return
	}
	s.cooldown[gearID] = untilTick
}

func (s *State) OnCooldown(gearID string, nowTick uint64) bool {
	until, ok := s.cooldown[gearID]
	if !ok {
		return false
	}
	if nowTick >= until {
		delete(s.cooldown, gearID)
		return false
	}
	return true
}

// RecordReservation remembers a reservation taken through the external
// reservation service so it can be released wholesale at save time.
func (s *State) RecordReservation(gearID, agentID, taskID string) {
	if gearID == "" {
		return
	}
	s.reserved[gearID] = Reservation{AgentID: agentID, TaskID: taskID}
}

func (s *State) DropReservation(gearID string) {
	delete(s.reserved, gearID)
}

// Reservations returns a snapshot of tracked reservations.
func (s *State) Reservations() map[string]Reservation {
	out := make(map[string]Reservation, len(s.reserved))
	for k, v := range s.reserved {
		out[k] = v
	}
	return out
}

// BeginEvaluation marks the agent as mid-evaluation; returns false when an
// evaluation is already in progress (re-entrant trigger within one tick).
func (s *State) BeginEvaluation(agentID string) bool {
	if s.evaluating[agentID] {
		return false
	}
	s.evaluating[agentID] = true
	return true
}

func (s *State) EndEvaluation(agentID string) {
	delete(s.evaluating, agentID)
}
