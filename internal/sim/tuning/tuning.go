package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int `yaml:"tick_rate_hz"`
	TickDurationMs int `yaml:"tick_duration_ms"`

	Scoring Scoring `yaml:"scoring"`
	Search  Search  `yaml:"search"`
	Upgrade Upgrade `yaml:"upgrade"`
	Carry   Carry   `yaml:"carry"`
}

type Scoring struct {
	// Epsilon absorbs float noise when comparing factors and scores.
	Epsilon float64 `yaml:"epsilon"`
	// QualityCurve maps quality tier (index 0 = lowest) to a score multiplier.
	QualityCurve  []float64 `yaml:"quality_curve"`
	QualityScaling bool     `yaml:"quality_scaling"`
}

type Search struct {
	RadiusCells      int     `yaml:"radius_cells"`
	PathCostBudget   float64 `yaml:"path_cost_budget"`
	CooldownTicks    uint64  `yaml:"cooldown_ticks"`
	SameCellPathCost float64 `yaml:"same_cell_path_cost"`
}

type Upgrade struct {
	MinGainPct             float64 `yaml:"min_gain_pct"`
	SameFamilyExtraGainPct float64 `yaml:"same_family_extra_gain_pct"`
	HysteresisWindowTicks  uint64  `yaml:"hysteresis_window_ticks"`
	HysteresisExtraGainPct float64 `yaml:"hysteresis_extra_gain_pct"`
	FocusWindowTicks       uint64  `yaml:"focus_window_ticks"`
}

type Carry struct {
	// DifficultyCap is the mode-derived carried-gear limit (1..3).
	DifficultyCap int `yaml:"difficulty_cap"`
	// CarryGearMinimum applies when the agent wears carry-enhancing equipment.
	CarryGearMinimum      int    `yaml:"carry_gear_minimum"`
	RecentAcqShieldTicks  uint64 `yaml:"recent_acq_shield_ticks"`
	StrictMode            bool   `yaml:"strict_mode"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.ApplyDefaults()
	return t, nil
}

func (t *Tuning) ApplyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 5
	}
	if t.TickDurationMs <= 0 {
		t.TickDurationMs = 1000 / t.TickRateHz
	}
	if t.Scoring.Epsilon <= 0 {
		t.Scoring.Epsilon = 0.001
	}
	if len(t.Scoring.QualityCurve) == 0 {
		t.Scoring.QualityCurve = []float64{0.70, 0.85, 1.00, 1.25, 1.60}
		t.Scoring.QualityScaling = true
	}
	if t.Search.RadiusCells <= 0 {
		t.Search.RadiusCells = 48
	}
	if t.Search.PathCostBudget <= 0 {
		t.Search.PathCostBudget = 120
	}
	if t.Search.CooldownTicks == 0 {
		t.Search.CooldownTicks = 600
	}
	if t.Search.SameCellPathCost <= 0 {
		t.Search.SameCellPathCost = 1
	}
	if t.Upgrade.MinGainPct <= 0 {
		t.Upgrade.MinGainPct = 0.10
	}
	if t.Upgrade.SameFamilyExtraGainPct <= 0 {
		t.Upgrade.SameFamilyExtraGainPct = 0.05
	}
	if t.Upgrade.HysteresisWindowTicks == 0 {
		t.Upgrade.HysteresisWindowTicks = 5000
	}
	if t.Upgrade.HysteresisExtraGainPct <= 0 {
		t.Upgrade.HysteresisExtraGainPct = 0.05
	}
	if t.Upgrade.FocusWindowTicks == 0 {
		t.Upgrade.FocusWindowTicks = 250
	}
	if t.Carry.DifficultyCap <= 0 {
		t.Carry.DifficultyCap = 2
	}
	if t.Carry.DifficultyCap > 3 {
		t.Carry.DifficultyCap = 3
	}
	if t.Carry.CarryGearMinimum <= 0 {
		t.Carry.CarryGearMinimum = 3
	}
	if t.Carry.RecentAcqShieldTicks == 0 {
		t.Carry.RecentAcqShieldTicks = 900
	}
}

// Default returns the tuning used when no tuning.yaml is present.
func Default() Tuning {
	var t Tuning
	t.ApplyDefaults()
	return t
}
