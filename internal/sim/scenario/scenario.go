// Package scenario loads a declarative world setup: agents, gear placement,
// storage zones and regions. Gear entries are denormalized against the gear
// catalog at load time so the simulation never consults the catalog for
// per-item flags.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gearcraft.ai/internal/sim/catalogs"
	"gearcraft.ai/internal/sim/world"
	"gearcraft.ai/internal/sim/world/kernel/model"
)

type Scenario struct {
	World   WorldSpec         `yaml:"world"`
	Agents  []AgentSpec       `yaml:"agents"`
	Gear    []GearSpec        `yaml:"gear"`
	Storage []ZoneSpec        `yaml:"storage"`
	Regions map[string]ZoneSpec `yaml:"regions"`
	Blocked [][3]int          `yaml:"blocked"`
}

type WorldSpec struct {
	ID        string `yaml:"id"`
	Seed      int64  `yaml:"seed"`
	BoundaryR int    `yaml:"boundary_r"`
}

type AgentSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Pos        [3]int `yaml:"pos"`
	CarryCap   int    `yaml:"carry_cap"`
	CarryGear  bool   `yaml:"carry_gear"`
	HomeRegion string `yaml:"home_region"`
	// Focus is the capability rotation the driver cycles through for this
	// agent, one capability per tick.
	Focus []string `yaml:"focus"`
}

type GearSpec struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`
	Stuff string `yaml:"stuff"`
	// Holder is an agent id; empty means the item lies in the world at Pos.
	Holder     string `yaml:"holder"`
	Equipped   bool   `yaml:"equipped"`
	Pos        [3]int `yaml:"pos"`
	Quality    int    `yaml:"quality"`
	Durability *int   `yaml:"durability"`
	Forbidden  bool   `yaml:"forbidden"`
}

type ZoneSpec struct {
	Min [3]int `yaml:"min"`
	Max [3]int `yaml:"max"`
}

func vec(v [3]int) model.Vec3i { return model.Vec3i{X: v[0], Y: v[1], Z: v[2]} }

func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.World.ID == "" {
		return fmt.Errorf("world.id is required")
	}
	agents := map[string]bool{}
	for _, a := range s.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if agents[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		agents[a.ID] = true
	}
	gear := map[string]bool{}
	for _, g := range s.Gear {
		if g.ID == "" || g.Type == "" {
			return fmt.Errorf("gear entry needs id and type")
		}
		if gear[g.ID] {
			return fmt.Errorf("duplicate gear id %q", g.ID)
		}
		gear[g.ID] = true
		if g.Holder != "" && !agents[g.Holder] {
			return fmt.Errorf("gear %q: unknown holder %q", g.ID, g.Holder)
		}
		if g.Equipped && g.Holder == "" {
			return fmt.Errorf("gear %q: equipped without holder", g.ID)
		}
	}
	for _, a := range s.Agents {
		if a.HomeRegion != "" {
			if _, ok := s.Regions[a.HomeRegion]; !ok {
				return fmt.Errorf("agent %q: unknown home region %q", a.ID, a.HomeRegion)
			}
		}
	}
	return nil
}

// Build instantiates the scenario into a fresh world. Gear flags come from
// the catalog; unknown gear types are an error so typos fail fast.
func (s *Scenario) Build(cats *catalogs.Catalogs) (*world.World, error) {
	cfg := world.WorldConfig{ID: s.World.ID, Seed: s.World.Seed, BoundaryR: s.World.BoundaryR}
	if cfg.BoundaryR <= 0 {
		cfg.BoundaryR = 512
	}
	w := world.New(cfg, cats)

	for _, a := range s.Agents {
		ag := &model.Agent{
			ID:           a.ID,
			Name:         a.Name,
			Pos:          vec(a.Pos),
			HomeRegion:   a.HomeRegion,
			StatCarryCap: a.CarryCap,
			HasCarryGear: a.CarryGear,
		}
		w.AddAgent(ag)
	}

	for _, g := range s.Gear {
		def, ok := cats.Gear.Defs[g.Type]
		if !ok {
			return nil, fmt.Errorf("gear %q: type %q not in catalog", g.ID, g.Type)
		}
		item := &model.GearItem{
			ID:            g.ID,
			Type:          g.Type,
			Stuff:         g.Stuff,
			Family:        def.Family,
			Real:          def.Real,
			HasQuality:    def.HasQuality,
			Quality:       g.Quality,
			MaxDurability: def.MaxDurability,
			Forbidden:     g.Forbidden,
			Pos:           vec(g.Pos),
		}
		item.Durability = def.MaxDurability
		if g.Durability != nil {
			item.Durability = *g.Durability
		}
		switch {
		case g.Holder == "":
			item.Holder = model.HolderWorld
		case g.Equipped:
			item.Holder = model.HolderEquipped
			item.HolderID = g.Holder
		default:
			item.Holder = model.HolderInventory
			item.HolderID = g.Holder
		}
		w.AddGear(item)
		if item.Held() {
			ag, _ := w.Agent(item.HolderID)
			if g.Equipped {
				ag.Equipped = item.ID
			} else {
				ag.Inventory = append(ag.Inventory, item.ID)
			}
			item.Pos = ag.Pos
		}
	}

	for _, z := range s.Storage {
		w.AddStorageZone(world.Zone{Min: vec(z.Min), Max: vec(z.Max)})
	}
	for id, z := range s.Regions {
		w.AddRegion(id, world.Zone{Min: vec(z.Min), Max: vec(z.Max)})
	}
	for _, b := range s.Blocked {
		w.BlockCell(vec(b))
	}
	return w, nil
}

// FocusFor returns the capability an agent should pursue at the given tick,
// cycling through its focus list. Agents with no focus sit out.
func (s *Scenario) FocusFor(agentID string, tick uint64) (string, bool) {
	for _, a := range s.Agents {
		if a.ID != agentID {
			continue
		}
		if len(a.Focus) == 0 {
			return "", false
		}
		return a.Focus[tick%uint64(len(a.Focus))], true
	}
	return "", false
}
