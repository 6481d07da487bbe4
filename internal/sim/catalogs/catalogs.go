package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Capabilities CapabilityCatalog
	Gear         GearCatalog
}

type CapabilityCatalog struct {
	Palette []string
	Defs    map[string]CapabilityDef
	// Core capabilities feed the eviction "overall" score, in palette order.
	Core       []string
	DefsDigest string
}

type CapabilityDef struct {
	ID string `json:"id"`
	// Baseline is the factor an agent has for this capability with no gear.
	Baseline float64 `json:"baseline"`
	Core     bool    `json:"core,omitempty"`
}

type GearCatalog struct {
	Palette    []string
	Defs       map[string]GearDef
	DefsDigest string
}

type GearDef struct {
	ID     string `json:"id"`
	Family string `json:"family"`
	// Factors maps capability id to the multiplicative factor this gear
	// provides. Absent capability means no effect.
	Factors map[string]float64 `json:"factors"`
	// StuffMult scales all factors by material ("stuff"); absent materials
	// use 1.0.
	StuffMult map[string]float64 `json:"stuff_mult,omitempty"`
	// Real gear counts toward carry limits; improvised substitutes do not.
	Real          bool `json:"real"`
	HasQuality    bool `json:"has_quality,omitempty"`
	MaxDurability int  `json:"max_durability,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadCapabilities(filepath.Join(configDir, "capabilities.json"), &c.Capabilities); err != nil {
		return nil, err
	}
	if err := loadGear(filepath.Join(configDir, "gear.json"), &c.Gear); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadCapabilities(path string, out *CapabilityCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []CapabilityDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("capabilities.json: %w", err)
	}
	out.Defs = map[string]CapabilityDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("capabilities.json: empty id")
		}
		if d.Baseline < 0 {
			return fmt.Errorf("capabilities.json: %s: negative baseline", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids

	out.Core = out.Core[:0]
	for _, id := range ids {
		if out.Defs[id].Core {
			out.Core = append(out.Core, id)
		}
	}
	if len(out.Core) == 0 {
		return fmt.Errorf("capabilities.json: no core capabilities")
	}
	return nil
}

func loadGear(path string, out *GearCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []GearDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("gear.json: %w", err)
	}
	out.Defs = map[string]GearDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("gear.json: empty id")
		}
		if d.MaxDurability < 0 {
			return fmt.Errorf("gear.json: %s: negative max_durability", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

// Resolver is the catalog-backed capability resolver: for a gear type and
// material it yields the multiplicative factor the gear provides for a
// capability, and the baseline factor an agent has bare-handed. Pure reads;
// safe to share.
type Resolver struct {
	c *Catalogs
}

func (c *Catalogs) Resolver() *Resolver { return &Resolver{c: c} }

func (r *Resolver) Factor(gearType, stuff, capability string) float64 {
	def, ok := r.c.Gear.Defs[gearType]
	if !ok {
		return 0
	}
	f, ok := def.Factors[capability]
	if !ok {
		return 0
	}
	if stuff != "" {
		if m, ok := def.StuffMult[stuff]; ok {
			f *= m
		}
	}
	return f
}

func (r *Resolver) Baseline(capability string) float64 {
	return r.c.Capabilities.Defs[capability].Baseline
}
