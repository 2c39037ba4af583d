package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// BeamwidthConstant relates linear gain to half-power beamwidth in
	// degrees: beamwidth = sqrt(BeamwidthConstant / linearGain).
	BeamwidthConstant = 52525.0

	// MaxOmniGainDBi is the gain at or below which an antenna is treated as
	// omnidirectional: no pointing loss, no targeting, no body noise.
	MaxOmniGainDBi = 5.0
)

// Antenna is the per-pass view of one antenna as reported by the part logic
// that owns it. Pointing is recomputed by the caller before every pass.
type Antenna struct {
	ID      string `yaml:"id" json:"id"`
	OwnerID string `yaml:"owner" json:"owner"`

	TxPowerDBm  float64 `yaml:"tx_power_dbm" json:"tx_power_dbm"`
	GainDBi     float64 `yaml:"gain_dbi" json:"gain_dbi"`
	FrequencyHz float64 `yaml:"frequency_hz" json:"frequency_hz"`

	// Band identifies the RF band. Antennas on different bands never link.
	Band string `yaml:"band" json:"band"`

	MinSymbolRate float64 `yaml:"min_symbol_rate" json:"min_symbol_rate"`
	MaxSymbolRate float64 `yaml:"max_symbol_rate" json:"max_symbol_rate"`

	MinModulationBits int `yaml:"min_modulation_bits" json:"min_modulation_bits"`
	MaxModulationBits int `yaml:"max_modulation_bits" json:"max_modulation_bits"`

	// TechLevel selects the coding tier (see core.CodingTier).
	TechLevel int `yaml:"tech_level" json:"tech_level"`

	// Pointing is a unit vector along the boresight. The zero vector means
	// the antenna has no target.
	Pointing r3.Vec `yaml:"-" json:"-"`

	// TargetNode names a node this antenna tracks. When set, Pointing is
	// refreshed toward that node before each pass.
	TargetNode string `yaml:"target" json:"target,omitempty"`

	// MicrowaveTemp is the receiver self-noise temperature in kelvin.
	MicrowaveTemp float64 `yaml:"microwave_temp" json:"microwave_temp"`
}

// LinearGain converts GainDBi to a power ratio.
func (a *Antenna) LinearGain() float64 {
	return math.Pow(10, a.GainDBi/10)
}

// Beamwidth returns the derived half-power beamwidth in degrees.
func (a *Antenna) Beamwidth() float64 {
	return Beamwidth(a.GainDBi)
}

// IsOmni reports whether the antenna is omnidirectional.
func (a *Antenna) IsOmni() bool {
	return a.GainDBi <= MaxOmniGainDBi
}

// CanTarget reports whether the antenna can be pointed at a target.
func (a *Antenna) CanTarget() bool {
	return !a.IsOmni()
}

// HasTarget reports whether a pointing vector was supplied for this pass.
func (a *Antenna) HasTarget() bool {
	return a.CanTarget() && r3.Norm2(a.Pointing) > 0
}

// Beamwidth returns the half-power beamwidth in degrees for a gain in dBi.
func Beamwidth(gainDBi float64) float64 {
	return math.Sqrt(BeamwidthConstant / math.Pow(10, gainDBi/10))
}
