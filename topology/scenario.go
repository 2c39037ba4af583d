package topology

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/rf-link-engine/core"
	"github.com/signalsfoundry/rf-link-engine/model"
)

// ErrInvalidScenario wraps every structural problem found while loading.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a loaded scenario file: the initial topology plus the motion
// models that move it over simulation time.
type Scenario struct {
	Epoch    time.Time
	Snapshot *model.Snapshot
	Motion   map[string]core.MotionModel
}

// internal YAML shapes, kept unexported so the file format can evolve.
type scenarioYAML struct {
	Epoch    time.Time       `yaml:"epoch"`
	Settings *model.Settings `yaml:"settings"`
	Bodies   []bodyYAML      `yaml:"bodies"`
	Nodes    []nodeYAML      `yaml:"nodes"`
}

type vecYAML struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v *vecYAML) vec() r3.Vec {
	if v == nil {
		return r3.Vec{}
	}
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

type bodyYAML struct {
	model.Occluder `yaml:",inline"`
	Position       *vecYAML `yaml:"position"`
}

// surfaceYAML places a node on a spherical body by latitude and longitude.
type surfaceYAML struct {
	Body   string  `yaml:"body"`
	LatDeg float64 `yaml:"lat_deg"`
	LonDeg float64 `yaml:"lon_deg"`
	AltM   float64 `yaml:"alt_m"`
}

type nodeYAML struct {
	ID             string        `yaml:"id"`
	Home           bool          `yaml:"home"`
	CanCommunicate *bool         `yaml:"can_communicate"`
	AmbientTemp    float64       `yaml:"ambient_temp"`
	Position       *vecYAML      `yaml:"position"`
	Surface        *surfaceYAML  `yaml:"surface"`
	TLE            []string      `yaml:"tle"`
	Antennas       []antennaYAML `yaml:"antennas"`
}

type antennaYAML struct {
	model.Antenna `yaml:",inline"`
	Pointing      *vecYAML `yaml:"pointing"`
}

// LoadScenarioFile reads a YAML scenario from path.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return LoadScenario(f)
}

// LoadScenario decodes a YAML scenario from r and validates references
// between bodies, nodes and antennas. Unknown fields are rejected.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	sc := &Scenario{
		Epoch: payload.Epoch,
		Snapshot: &model.Snapshot{
			Settings: model.DefaultSettings(),
		},
		Motion: make(map[string]core.MotionModel),
	}
	if payload.Settings != nil {
		sc.Snapshot.Settings = *payload.Settings
	}

	bodies := make(map[string]model.Occluder, len(payload.Bodies))
	for _, b := range payload.Bodies {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: body with empty name", ErrInvalidScenario)
		}
		if _, dup := bodies[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate body %q", ErrInvalidScenario, b.Name)
		}
		if b.Radius <= 0 {
			return nil, fmt.Errorf("%w: body %q needs a positive radius", ErrInvalidScenario, b.Name)
		}
		o := b.Occluder
		o.Position = b.Position.vec()
		bodies[o.Name] = o
		sc.Snapshot.Occluders = append(sc.Snapshot.Occluders, o)
	}

	for _, ny := range payload.Nodes {
		n, err := buildNode(ny, bodies)
		if err != nil {
			return nil, err
		}
		for _, ay := range ny.Antennas {
			a := ay.Antenna
			if a.ID == "" {
				return nil, fmt.Errorf("%w: node %q has an antenna with empty id", ErrInvalidScenario, n.ID)
			}
			if a.OwnerID != "" && a.OwnerID != n.ID {
				return nil, fmt.Errorf("%w: antenna %q declares owner %q inside node %q", ErrInvalidScenario, a.ID, a.OwnerID, n.ID)
			}
			a.OwnerID = n.ID
			if ay.Pointing != nil {
				if p := ay.Pointing.vec(); r3.Norm2(p) > 0 {
					a.Pointing = r3.Unit(p)
				}
			}
			n.AntennaIDs = append(n.AntennaIDs, a.ID)
			sc.Snapshot.Antennas = append(sc.Snapshot.Antennas, a)
		}

		if len(ny.TLE) > 0 {
			if len(ny.TLE) != 2 {
				return nil, fmt.Errorf("%w: node %q tle needs exactly two lines", ErrInvalidScenario, n.ID)
			}
			m, err := core.NewOrbitalModelFromTLE(ny.TLE[0], ny.TLE[1])
			if err != nil {
				return nil, fmt.Errorf("%w: node %q: %w", ErrInvalidScenario, n.ID, err)
			}
			sc.Motion[n.ID] = m
			if !sc.Epoch.IsZero() {
				if pos, ok := m.PositionAt(sc.Epoch); ok {
					n.Position = pos
				}
			}
		}
		sc.Snapshot.Nodes = append(sc.Snapshot.Nodes, n)
	}

	if err := validateTargets(sc.Snapshot); err != nil {
		return nil, err
	}
	return sc, nil
}

func buildNode(ny nodeYAML, bodies map[string]model.Occluder) (model.Node, error) {
	n := model.Node{
		ID:                 ny.ID,
		IsHome:             ny.Home,
		CanCommunicate:     true,
		AmbientTemperature: ny.AmbientTemp,
		Position:           ny.Position.vec(),
	}
	if n.ID == "" {
		return n, fmt.Errorf("%w: node with empty id", ErrInvalidScenario)
	}
	if ny.CanCommunicate != nil {
		n.CanCommunicate = *ny.CanCommunicate
	}
	if ny.Surface == nil {
		return n, nil
	}
	if ny.Position != nil || len(ny.TLE) > 0 {
		return n, fmt.Errorf("%w: node %q mixes surface placement with position or tle", ErrInvalidScenario, n.ID)
	}

	body, ok := bodies[ny.Surface.Body]
	if !ok {
		return n, fmt.Errorf("%w: node %q anchored to unknown body %q", ErrInvalidScenario, n.ID, ny.Surface.Body)
	}
	up := surfaceNormal(ny.Surface.LatDeg, ny.Surface.LonDeg)
	n.AnchorBody = body.Name
	n.SurfaceNormal = up
	n.Position = r3.Add(body.Position, r3.Scale(body.Radius+ny.Surface.AltM, up))
	if n.AmbientTemperature == 0 {
		n.AmbientTemperature = body.Temperature
	}
	return n, nil
}

// surfaceNormal is the outward unit vector at a geocentric latitude and
// longitude on a sphere.
func surfaceNormal(latDeg, lonDeg float64) r3.Vec {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	return r3.Vec{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

func validateTargets(snap *model.Snapshot) error {
	ids := make(map[string]struct{}, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidScenario, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, a := range snap.Antennas {
		if a.TargetNode == "" {
			continue
		}
		if _, ok := ids[a.TargetNode]; !ok {
			return fmt.Errorf("%w: antenna %q targets unknown node %q", ErrInvalidScenario, a.ID, a.TargetNode)
		}
	}
	return nil
}

// Apply replaces the store's topology with the scenario and positions
// moving nodes at simTime.
func (sc *Scenario) Apply(s *Store, simTime time.Time) {
	s.Replace(sc.Snapshot, sc.Motion)
	if !simTime.IsZero() {
		s.Propagate(simTime)
	}
}
