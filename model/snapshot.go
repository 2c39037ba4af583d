package model

// Settings carries pass-wide tunables that are copied in with a snapshot.
type Settings struct {
	// AtmosphereCondition interpolates zenith attenuation between dry (0)
	// and wet (1) conditions.
	AtmosphereCondition float64 `yaml:"atmosphere_condition" json:"atmosphere_condition"`
}

// DefaultSettings returns the settings used when a scenario omits them.
func DefaultSettings() Settings {
	return Settings{AtmosphereCondition: 0.5}
}

// Snapshot is the immutable input of one recomputation pass.
type Snapshot struct {
	Nodes     []Node
	Antennas  []Antenna
	Occluders []Occluder
	Settings  Settings
}

// Clone returns a deep copy so the caller may keep mutating its state while
// a pass is running.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Nodes:     make([]Node, len(s.Nodes)),
		Antennas:  make([]Antenna, len(s.Antennas)),
		Occluders: make([]Occluder, len(s.Occluders)),
		Settings:  s.Settings,
	}
	for i, n := range s.Nodes {
		n.AntennaIDs = append([]string(nil), n.AntennaIDs...)
		out.Nodes[i] = n
	}
	copy(out.Antennas, s.Antennas)
	copy(out.Occluders, s.Occluders)
	return out
}
