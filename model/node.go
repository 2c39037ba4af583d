package model

import "gonum.org/v1/gonum/spatial/r3"

// Node is a communication endpoint (vessel or ground station). Positions
// are in metres in a common inertial frame.
type Node struct {
	ID       string `yaml:"id" json:"id"`
	Position r3.Vec `yaml:"-" json:"-"`

	// SurfaceNormal is the outward normal of the body the node sits on. It
	// is the zero vector for free-flying nodes.
	SurfaceNormal r3.Vec `yaml:"-" json:"-"`

	// AnchorBody names the occluder the node is anchored to, if any.
	AnchorBody string `yaml:"anchor_body" json:"anchor_body"`

	// AmbientTemperature is the body-derived receiver noise temperature
	// used instead of the antenna self-noise when the node is anchored.
	AmbientTemperature float64 `yaml:"ambient_temp" json:"ambient_temp"`

	IsHome         bool `yaml:"home" json:"home"`
	CanCommunicate bool `yaml:"can_communicate" json:"can_communicate"`

	AntennaIDs []string `yaml:"antennas" json:"antennas"`
}

// Anchored reports whether the node sits on a body surface.
func (n *Node) Anchored() bool {
	return r3.Norm2(n.SurfaceNormal) > 0
}
