package protocol

// Version is the decision-event record version. Bump when fields change
// meaning; consumers (journal, index DB, feed) check it on replay.
const Version = "1.0"

// Decision event types emitted by the gear engine.
const (
	EventUpgradeQueued   = "UPGRADE_QUEUED"
	EventUpgradeBlocked  = "UPGRADE_BLOCKED"
	EventEvictionQueued  = "EVICTION_QUEUED"
	EventEnforceRun      = "ENFORCE_RUN"
	EventCooldownSet     = "COOLDOWN_SET"
	EventReservationFail = "RESERVATION_FAIL"
)

// EventTypes lists all decision event types in a stable display order.
func EventTypes() []string {
	return []string{
		EventUpgradeQueued,
		EventUpgradeBlocked,
		EventEvictionQueued,
		EventEnforceRun,
		EventCooldownSet,
		EventReservationFail,
	}
}

// DecisionEvent is one engine decision, serialized as-is into the JSONL
// journal, the sqlite index, and the observer feed.
type DecisionEvent struct {
	Tick       uint64  `json:"t"`
	Type       string  `json:"type"`
	AgentID    string  `json:"agent_id"`
	Capability string  `json:"capability,omitempty"`
	GearID     string  `json:"gear_id,omitempty"`
	VictimID   string  `json:"victim_id,omitempty"`
	TaskID     string  `json:"task_id,omitempty"`
	GainPct    float64 `json:"gain_pct,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Tier       int     `json:"tier,omitempty"`
	Code       string  `json:"code,omitempty"`
	Evicted    int     `json:"evicted,omitempty"`
}
