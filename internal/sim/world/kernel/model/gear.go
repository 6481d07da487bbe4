package model

type HolderKind int

const (
	HolderWorld HolderKind = iota
	HolderInventory
	HolderEquipped
)

// GearItem is one uniquely identified physical item. The simulation owns the
// holder and position; the engine only reads them and queues tasks.
type GearItem struct {
	ID   string
	Type string
	// Stuff is the optional material modifier ("" for typeless gear).
	Stuff string

	// Denormalized from the gear catalog at creation time.
	Family string
	// Real gear counts toward carry limits; improvised substitutes do not.
	Real       bool
	HasQuality bool

	// Quality is the tier index into the quality curve; valid only when
	// HasQuality is set.
	Quality int

	// Durability in [0, MaxDurability]; MaxDurability 0 means the type does
	// not wear.
	Durability    int
	MaxDurability int

	Holder   HolderKind
	HolderID string // agent id when held
	Pos      Vec3i  // world position when Holder == HolderWorld

	// Forbidden items are never acquired.
	Forbidden bool
	Destroyed bool
}

// ConditionFactor degrades score with wear: a fully worn item is worth half,
// never zero.
func (g *GearItem) ConditionFactor() float64 {
	if g.MaxDurability <= 0 {
		return 1.0
	}
	d := g.Durability
	if d < 0 {
		d = 0
	}
	if d > g.MaxDurability {
		d = g.MaxDurability
	}
	return 0.5 + 0.5*float64(d)/float64(g.MaxDurability)
}

func (g *GearItem) Held() bool {
	return g.Holder == HolderInventory || g.Holder == HolderEquipped
}

type Vec3i struct{ X, Y, Z int }

// CellDist is the walk-distance estimate between two cells.
func CellDist(a, b Vec3i) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	return dx + dy + dz
}
