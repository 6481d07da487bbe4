package tasks

type Kind string

const (
	KindEquip                Kind = "EQUIP"
	KindTransportToInventory Kind = "TRANSPORT_TO_INVENTORY"
	KindDropHeld             Kind = "DROP_HELD"
	KindDropEquipped         Kind = "DROP_EQUIPPED"
	KindHaulToLocation       Kind = "HAUL_TO_LOCATION"
)

// gearKinds is the closed set of task kinds this engine creates or inspects.
// Anything outside this table is not gear management and is never touched.
var gearKinds = map[Kind]class{
	KindEquip:                {acquisition: true},
	KindTransportToInventory: {acquisition: true},
	KindDropHeld:             {eviction: true},
	KindDropEquipped:         {eviction: true},
	KindHaulToLocation:       {eviction: true},
}

type class struct {
	acquisition bool
	eviction    bool
}

func IsGearKind(k Kind) bool {
	_, ok := gearKinds[k]
	return ok
}

func IsAcquisition(k Kind) bool { return gearKinds[k].acquisition }
func IsEviction(k Kind) bool    { return gearKinds[k].eviction }

// GearTask is a queued gear-management action. Execution (walking, the
// physical pick-up/drop) is owned by the surrounding simulation; the engine
// only creates, classifies, and de-duplicates these.
type GearTask struct {
	TaskID string
	Kind   Kind

	// Target gear item (all kinds).
	GearID string
	// HAUL_TO_LOCATION destination.
	Dest Vec3i

	StartedTick uint64
	// WorkTicks accumulates elapsed ticks on the current unit of work.
	WorkTicks int
}

// Equivalent reports whether two tasks would do the same thing, for
// de-duplication against already-queued work.
func (t *GearTask) Equivalent(kind Kind, gearID string) bool {
	if t == nil {
		return false
	}
	if t.GearID != gearID {
		return false
	}
	if t.Kind == kind {
		return true
	}
	// An equip subsumes a transport of the same item and vice versa: both
	// end with the item in the agent's possession.
	return IsAcquisition(t.Kind) && IsAcquisition(kind)
}

// Vec3i is duplicated here to avoid import cycles (tasks is used by world).
type Vec3i struct{ X, Y, Z int }
