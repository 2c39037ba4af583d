package core

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/rf-link-engine/model"
)

var (
	ErrEmptySnapshot  = errors.New("nil snapshot")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrEmptyID        = errors.New("empty id")
	ErrUnknownOwner   = errors.New("antenna references unknown owner node")
	ErrUnknownAntenna = errors.New("node references unknown antenna")
	ErrOwnerMismatch  = errors.New("node lists antenna owned by another node")
	ErrUnknownBody    = errors.New("node anchored to unknown body")
)

// NodeSnap is the flat per-pass view of a node. Antennas holds slots into
// Registry.Antennas.
type NodeSnap struct {
	Position      r3.Vec
	SurfaceNormal r3.Vec
	AnchorBody    int32 // index into Registry.Occluders, -1 when free-flying
	AmbientTemp   float64

	IsHome         bool
	CanCommunicate bool

	Antennas []int32
}

// Anchored reports whether the node sits on a body surface.
func (n *NodeSnap) Anchored() bool {
	return r3.Norm2(n.SurfaceNormal) > 0
}

// AntennaSnap is the flat per-pass view of an antenna.
type AntennaSnap struct {
	Owner int32
	Band  int32

	TxPowerDBm  float64
	GainDBi     float64
	FrequencyHz float64
	Beamwidth   float64

	MinSymbolRate float64
	MaxSymbolRate float64
	MinModBits    int
	MaxModBits    int

	Tier CodingTier

	Pointing r3.Vec // unit vector, zero when untargeted
	Omni     bool
	Targeted bool
	IsHome   bool

	MicrowaveTemp float64
}

// Registry is the arena for one pass: nodes, antennas and occluders are
// addressed by int32 slot and never by pointer.
type Registry struct {
	Nodes     []NodeSnap
	Antennas  []AntennaSnap
	Occluders []model.Occluder
	Settings  model.Settings

	nodeIDs      []string
	nodeIndex    map[string]int32
	antennaIDs   []string
	antennaIndex map[string]int32
	bands        []string
}

// BuildRegistry flattens a snapshot. Referential integrity violations are
// programming errors in the caller and abort the pass.
func BuildRegistry(snap *model.Snapshot) (*Registry, error) {
	if snap == nil {
		return nil, ErrEmptySnapshot
	}

	reg := &Registry{
		Nodes:        make([]NodeSnap, len(snap.Nodes)),
		Antennas:     make([]AntennaSnap, len(snap.Antennas)),
		Occluders:    append([]model.Occluder(nil), snap.Occluders...),
		Settings:     snap.Settings,
		nodeIDs:      make([]string, len(snap.Nodes)),
		nodeIndex:    make(map[string]int32, len(snap.Nodes)),
		antennaIDs:   make([]string, len(snap.Antennas)),
		antennaIndex: make(map[string]int32, len(snap.Antennas)),
	}

	bodyIndex := make(map[string]int32, len(snap.Occluders))
	for i, occ := range snap.Occluders {
		if occ.Name == "" {
			return nil, fmt.Errorf("occluder %d: %w", i, ErrEmptyID)
		}
		if _, exists := bodyIndex[occ.Name]; exists {
			return nil, fmt.Errorf("occluder %q: %w", occ.Name, ErrDuplicateID)
		}
		bodyIndex[occ.Name] = int32(i)
	}

	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: %w", i, ErrEmptyID)
		}
		if _, exists := reg.nodeIndex[n.ID]; exists {
			return nil, fmt.Errorf("node %q: %w", n.ID, ErrDuplicateID)
		}
		anchor := int32(-1)
		if n.AnchorBody != "" {
			idx, ok := bodyIndex[n.AnchorBody]
			if !ok {
				return nil, fmt.Errorf("node %q body %q: %w", n.ID, n.AnchorBody, ErrUnknownBody)
			}
			anchor = idx
		}
		reg.nodeIndex[n.ID] = int32(i)
		reg.nodeIDs[i] = n.ID
		reg.Nodes[i] = NodeSnap{
			Position:       n.Position,
			SurfaceNormal:  unitOrZero(n.SurfaceNormal),
			AnchorBody:     anchor,
			AmbientTemp:    n.AmbientTemperature,
			IsHome:         n.IsHome,
			CanCommunicate: n.CanCommunicate,
			Antennas:       make([]int32, 0, len(n.AntennaIDs)),
		}
	}

	bandIndex := make(map[string]int32)
	for i := range snap.Antennas {
		a := &snap.Antennas[i]
		if a.ID == "" {
			return nil, fmt.Errorf("antenna %d: %w", i, ErrEmptyID)
		}
		if _, exists := reg.antennaIndex[a.ID]; exists {
			return nil, fmt.Errorf("antenna %q: %w", a.ID, ErrDuplicateID)
		}
		owner, ok := reg.nodeIndex[a.OwnerID]
		if !ok {
			return nil, fmt.Errorf("antenna %q owner %q: %w", a.ID, a.OwnerID, ErrUnknownOwner)
		}
		band, ok := bandIndex[a.Band]
		if !ok {
			band = int32(len(reg.bands))
			bandIndex[a.Band] = band
			reg.bands = append(reg.bands, a.Band)
		}

		reg.antennaIndex[a.ID] = int32(i)
		reg.antennaIDs[i] = a.ID
		reg.Antennas[i] = AntennaSnap{
			Owner:         owner,
			Band:          band,
			TxPowerDBm:    a.TxPowerDBm,
			GainDBi:       a.GainDBi,
			FrequencyHz:   a.FrequencyHz,
			Beamwidth:     a.Beamwidth(),
			MinSymbolRate: a.MinSymbolRate,
			MaxSymbolRate: a.MaxSymbolRate,
			MinModBits:    a.MinModulationBits,
			MaxModBits:    a.MaxModulationBits,
			Tier:          CodingTierForTechLevel(a.TechLevel),
			Pointing:      unitOrZero(a.Pointing),
			Omni:          a.IsOmni(),
			Targeted:      a.HasTarget(),
			IsHome:        reg.Nodes[owner].IsHome,
			MicrowaveTemp: a.MicrowaveTemp,
		}
	}

	// Node antenna order follows the node's own list. Antennas that name
	// an owner without being listed by it are appended in snapshot order.
	listed := make([]bool, len(snap.Antennas))
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		for _, id := range n.AntennaIDs {
			slot, ok := reg.antennaIndex[id]
			if !ok {
				return nil, fmt.Errorf("node %q antenna %q: %w", n.ID, id, ErrUnknownAntenna)
			}
			if reg.Antennas[slot].Owner != int32(i) {
				return nil, fmt.Errorf("node %q antenna %q: %w", n.ID, id, ErrOwnerMismatch)
			}
			if listed[slot] {
				return nil, fmt.Errorf("node %q antenna %q listed twice: %w", n.ID, id, ErrDuplicateID)
			}
			listed[slot] = true
			reg.Nodes[i].Antennas = append(reg.Nodes[i].Antennas, slot)
		}
	}
	for slot, ok := range listed {
		if ok {
			continue
		}
		owner := reg.Antennas[slot].Owner
		reg.Nodes[owner].Antennas = append(reg.Nodes[owner].Antennas, int32(slot))
	}

	return reg, nil
}

// NodeID returns the external ID of the node in slot i.
func (r *Registry) NodeID(i int32) string { return r.nodeIDs[i] }

// NodeIndex returns the slot of the node with the given ID.
func (r *Registry) NodeIndex(id string) (int32, bool) {
	i, ok := r.nodeIndex[id]
	return i, ok
}

// AntennaID returns the external ID of the antenna in slot i.
func (r *Registry) AntennaID(i int32) string { return r.antennaIDs[i] }

// AntennaIndex returns the slot of the antenna with the given ID.
func (r *Registry) AntennaIndex(id string) (int32, bool) {
	i, ok := r.antennaIndex[id]
	return i, ok
}

// BandName returns the band identifier interned at slot b.
func (r *Registry) BandName(b int32) string { return r.bands[b] }

func unitOrZero(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
