// Package topology owns the mutable view of nodes, antennas and occluding
// bodies between recomputation passes.
package topology

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/rf-link-engine/core"
	"github.com/signalsfoundry/rf-link-engine/model"
)

var (
	ErrEmptyID      = errors.New("empty id")
	ErrNotFound     = errors.New("not found")
	ErrUnknownOwner = errors.New("owner node not found")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventNodeUpserted EventType = iota
	EventNodeRemoved
	EventAntennaUpserted
	EventAntennaRemoved
	EventOccluderUpserted
	EventOccluderRemoved
	EventSettingsUpdated
	EventPositionsUpdated
	EventReplaced
)

func (t EventType) String() string {
	switch t {
	case EventNodeUpserted:
		return "node_upserted"
	case EventNodeRemoved:
		return "node_removed"
	case EventAntennaUpserted:
		return "antenna_upserted"
	case EventAntennaRemoved:
		return "antenna_removed"
	case EventOccluderUpserted:
		return "occluder_upserted"
	case EventOccluderRemoved:
		return "occluder_removed"
	case EventSettingsUpdated:
		return "settings_updated"
	case EventPositionsUpdated:
		return "positions_updated"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers after a change is applied.
type Event struct {
	Type EventType
	// ID is the affected node, antenna or occluder; empty for bulk events.
	ID string
	// SimTime is set for EventPositionsUpdated.
	SimTime time.Time
}

// Store is an in-memory, thread-safe owner of the topology.
type Store struct {
	mu sync.RWMutex

	nodes     map[string]*model.Node
	antennas  map[string]*model.Antenna
	occluders map[string]*model.Occluder
	settings  model.Settings

	motion         map[string]core.MotionModel
	occluderMotion map[string]core.MotionModel

	subs   map[int]func(Event)
	nextID int
}

// NewStore constructs an empty store with default settings.
func NewStore() *Store {
	return &Store{
		nodes:          make(map[string]*model.Node),
		antennas:       make(map[string]*model.Antenna),
		occluders:      make(map[string]*model.Occluder),
		settings:       model.DefaultSettings(),
		motion:         make(map[string]core.MotionModel),
		occluderMotion: make(map[string]core.MotionModel),
		subs:           make(map[int]func(Event)),
	}
}

// UpsertNode adds or replaces a node.
func (s *Store) UpsertNode(n model.Node) error {
	if n.ID == "" {
		return fmt.Errorf("node: %w", ErrEmptyID)
	}
	n.AntennaIDs = slices.Clone(n.AntennaIDs)

	s.mu.Lock()
	s.nodes[n.ID] = &n
	s.mu.Unlock()

	s.publish(Event{Type: EventNodeUpserted, ID: n.ID})
	return nil
}

// RemoveNode deletes a node together with its antennas and motion model.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("node %q: %w", id, ErrNotFound)
	}
	delete(s.nodes, id)
	delete(s.motion, id)
	for aid, a := range s.antennas {
		if a.OwnerID == id {
			delete(s.antennas, aid)
		}
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventNodeRemoved, ID: id})
	return nil
}

// UpsertAntenna adds or replaces an antenna. The owner must exist; the
// antenna is appended to the owner's antenna list if missing.
func (s *Store) UpsertAntenna(a model.Antenna) error {
	if a.ID == "" {
		return fmt.Errorf("antenna: %w", ErrEmptyID)
	}

	s.mu.Lock()
	owner, ok := s.nodes[a.OwnerID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("antenna %q owner %q: %w", a.ID, a.OwnerID, ErrUnknownOwner)
	}
	if prev, ok := s.antennas[a.ID]; ok && prev.OwnerID != a.OwnerID {
		if old, ok := s.nodes[prev.OwnerID]; ok {
			old.AntennaIDs = slices.DeleteFunc(old.AntennaIDs, func(x string) bool { return x == a.ID })
		}
	}
	if !slices.Contains(owner.AntennaIDs, a.ID) {
		owner.AntennaIDs = append(owner.AntennaIDs, a.ID)
	}
	s.antennas[a.ID] = &a
	s.mu.Unlock()

	s.publish(Event{Type: EventAntennaUpserted, ID: a.ID})
	return nil
}

// RemoveAntenna deletes an antenna and unlists it from its owner.
func (s *Store) RemoveAntenna(id string) error {
	s.mu.Lock()
	a, ok := s.antennas[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("antenna %q: %w", id, ErrNotFound)
	}
	if owner, ok := s.nodes[a.OwnerID]; ok {
		owner.AntennaIDs = slices.DeleteFunc(owner.AntennaIDs, func(x string) bool { return x == id })
	}
	delete(s.antennas, id)
	s.mu.Unlock()

	s.publish(Event{Type: EventAntennaRemoved, ID: id})
	return nil
}

// UpsertOccluder adds or replaces a body.
func (s *Store) UpsertOccluder(o model.Occluder) error {
	if o.Name == "" {
		return fmt.Errorf("occluder: %w", ErrEmptyID)
	}
	s.mu.Lock()
	s.occluders[o.Name] = &o
	s.mu.Unlock()

	s.publish(Event{Type: EventOccluderUpserted, ID: o.Name})
	return nil
}

// RemoveOccluder deletes a body.
func (s *Store) RemoveOccluder(name string) error {
	s.mu.Lock()
	if _, ok := s.occluders[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("occluder %q: %w", name, ErrNotFound)
	}
	delete(s.occluders, name)
	delete(s.occluderMotion, name)
	s.mu.Unlock()

	s.publish(Event{Type: EventOccluderRemoved, ID: name})
	return nil
}

// SetSettings replaces the pass-wide settings.
func (s *Store) SetSettings(settings model.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.publish(Event{Type: EventSettingsUpdated})
}

// Settings returns the current settings.
func (s *Store) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetMotion attaches a motion model to a node. A nil model detaches it.
func (s *Store) SetMotion(nodeID string, m core.MotionModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return fmt.Errorf("node %q: %w", nodeID, ErrNotFound)
	}
	if m == nil {
		delete(s.motion, nodeID)
		return nil
	}
	s.motion[nodeID] = m
	return nil
}

// SetOccluderMotion attaches a motion model to a body.
func (s *Store) SetOccluderMotion(name string, m core.MotionModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occluders[name]; !ok {
		return fmt.Errorf("occluder %q: %w", name, ErrNotFound)
	}
	if m == nil {
		delete(s.occluderMotion, name)
		return nil
	}
	s.occluderMotion[name] = m
	return nil
}

// Propagate moves every node and body with a motion model to its position
// at simTime. Anchored nodes keep their surface normal pointing away from
// their body's centre. It returns the number of positions updated and
// notifies subscribers once when any moved.
func (s *Store) Propagate(simTime time.Time) int {
	s.mu.Lock()
	moved := 0
	for name, m := range s.occluderMotion {
		if pos, ok := m.PositionAt(simTime); ok {
			s.occluders[name].Position = pos
			moved++
		}
	}
	for id, m := range s.motion {
		if pos, ok := m.PositionAt(simTime); ok {
			s.nodes[id].Position = pos
			moved++
		}
	}
	if moved > 0 {
		for _, n := range s.nodes {
			if body, ok := s.occluders[n.AnchorBody]; ok {
				if up := r3.Sub(n.Position, body.Position); r3.Norm2(up) > 0 {
					n.SurfaceNormal = r3.Unit(up)
				}
			}
		}
	}
	s.mu.Unlock()

	if moved > 0 {
		s.publish(Event{Type: EventPositionsUpdated, SimTime: simTime})
	}
	return moved
}

// Replace swaps the entire topology, for example after a scenario reload.
func (s *Store) Replace(snap *model.Snapshot, motion map[string]core.MotionModel) {
	nodes := make(map[string]*model.Node, len(snap.Nodes))
	antennas := make(map[string]*model.Antenna, len(snap.Antennas))
	occluders := make(map[string]*model.Occluder, len(snap.Occluders))
	cp := snap.Clone()
	for i := range cp.Nodes {
		nodes[cp.Nodes[i].ID] = &cp.Nodes[i]
	}
	for i := range cp.Antennas {
		antennas[cp.Antennas[i].ID] = &cp.Antennas[i]
	}
	for i := range cp.Occluders {
		occluders[cp.Occluders[i].Name] = &cp.Occluders[i]
	}
	nodeMotion := make(map[string]core.MotionModel)
	bodyMotion := make(map[string]core.MotionModel)
	for id, m := range motion {
		if _, ok := nodes[id]; ok {
			nodeMotion[id] = m
		} else if _, ok := occluders[id]; ok {
			bodyMotion[id] = m
		}
	}

	s.mu.Lock()
	s.nodes, s.antennas, s.occluders = nodes, antennas, occluders
	s.settings = cp.Settings
	s.motion, s.occluderMotion = nodeMotion, bodyMotion
	s.mu.Unlock()

	s.publish(Event{Type: EventReplaced})
}

// Node returns a copy of the node with the given ID.
func (s *Store) Node(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	out := *n
	out.AntennaIDs = slices.Clone(n.AntennaIDs)
	return out, true
}

// Antenna returns a copy of the antenna with the given ID.
func (s *Store) Antenna(id string) (model.Antenna, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.antennas[id]
	if !ok {
		return model.Antenna{}, false
	}
	return *a, true
}

// Snapshot deep-copies the topology in ID order so repeated snapshots of
// the same state produce identical passes. Tracking antennas get their
// pointing refreshed toward their target node.
func (s *Store) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.Snapshot{
		Nodes:     make([]model.Node, 0, len(s.nodes)),
		Antennas:  make([]model.Antenna, 0, len(s.antennas)),
		Occluders: make([]model.Occluder, 0, len(s.occluders)),
		Settings:  s.settings,
	}
	for _, id := range sortedKeys(s.nodes) {
		n := *s.nodes[id]
		n.AntennaIDs = slices.Clone(n.AntennaIDs)
		snap.Nodes = append(snap.Nodes, n)
	}
	for _, id := range sortedKeys(s.antennas) {
		a := *s.antennas[id]
		if a.TargetNode != "" && a.CanTarget() {
			a.Pointing = s.pointing(&a)
		}
		snap.Antennas = append(snap.Antennas, a)
	}
	for _, name := range sortedKeys(s.occluders) {
		snap.Occluders = append(snap.Occluders, *s.occluders[name])
	}
	return snap
}

// pointing is the unit vector from a's owner to its target, or zero.
//
// NOTE: caller must hold s.mu.
func (s *Store) pointing(a *model.Antenna) r3.Vec {
	owner, ok := s.nodes[a.OwnerID]
	if !ok {
		return r3.Vec{}
	}
	target, ok := s.nodes[a.TargetNode]
	if !ok {
		return r3.Vec{}
	}
	d := r3.Sub(target.Position, owner.Position)
	if r3.Norm2(d) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(d)
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function. Callbacks run synchronously on the mutating
// goroutine, outside the store lock.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) publish(ev Event) {
	s.mu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, id := range sortedKeys(s.subs) {
		subs = append(subs, s.subs[id])
	}
	s.mu.RUnlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(ev)
	}
}

func sortedKeys[K string | int, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
