package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/rf-link-engine/core"
	"github.com/signalsfoundry/rf-link-engine/model"
)

func dish(id, owner string) model.Antenna {
	return model.Antenna{
		ID:                id,
		OwnerID:           owner,
		TxPowerDBm:        40,
		GainDBi:           30,
		FrequencyHz:       8.4e9,
		Band:              "X",
		MinSymbolRate:     1e3,
		MaxSymbolRate:     1e7,
		MinModulationBits: 1,
		MaxModulationBits: 4,
		TechLevel:         int(core.CodingTurboHalf),
		MicrowaveTemp:     50,
	}
}

type movingModel struct {
	base r3.Vec
	rate float64 // metres per second along x
	t0   time.Time
}

func (m movingModel) PositionAt(t time.Time) (r3.Vec, bool) {
	dt := t.Sub(m.t0).Seconds()
	return r3.Add(m.base, r3.Vec{X: m.rate * dt}), true
}

func TestStore_UpsertAndRemoveCascade(t *testing.T) {
	s := NewStore()
	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, s.UpsertNode(model.Node{ID: "sc", CanCommunicate: true}))
	require.NoError(t, s.UpsertAntenna(dish("sc-x", "sc")))

	n, ok := s.Node("sc")
	require.True(t, ok)
	assert.Equal(t, []string{"sc-x"}, n.AntennaIDs)

	require.NoError(t, s.RemoveNode("sc"))
	_, ok = s.Antenna("sc-x")
	assert.False(t, ok, "antenna should be removed with its owner")

	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventNodeUpserted, EventAntennaUpserted, EventNodeRemoved}, types)

	unsubscribe()
	require.NoError(t, s.UpsertNode(model.Node{ID: "other"}))
	assert.Len(t, events, 3, "unsubscribed callback still called")
}

func TestStore_Errors(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.UpsertNode(model.Node{}), ErrEmptyID)
	assert.ErrorIs(t, s.UpsertAntenna(dish("x", "ghost")), ErrUnknownOwner)
	assert.ErrorIs(t, s.RemoveNode("ghost"), ErrNotFound)
	assert.ErrorIs(t, s.RemoveAntenna("ghost"), ErrNotFound)
	assert.ErrorIs(t, s.RemoveOccluder("ghost"), ErrNotFound)
	assert.ErrorIs(t, s.SetMotion("ghost", core.StaticMotionModel{}), ErrNotFound)
	assert.ErrorIs(t, s.UpsertOccluder(model.Occluder{}), ErrEmptyID)
}

func TestStore_AntennaMovesBetweenOwners(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.UpsertNode(model.Node{ID: "a"}))
	require.NoError(t, s.UpsertNode(model.Node{ID: "b"}))
	require.NoError(t, s.UpsertAntenna(dish("ant", "a")))
	require.NoError(t, s.UpsertAntenna(dish("ant", "b")))

	a, _ := s.Node("a")
	b, _ := s.Node("b")
	assert.Empty(t, a.AntennaIDs)
	assert.Equal(t, []string{"ant"}, b.AntennaIDs)

	require.NoError(t, s.RemoveAntenna("ant"))
	b, _ = s.Node("b")
	assert.Empty(t, b.AntennaIDs)
}

func TestStore_SnapshotSortedAndDetached(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.UpsertNode(model.Node{ID: id}))
	}
	require.NoError(t, s.UpsertAntenna(dish("mid-x", "mid")))

	snap := s.Snapshot()
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, "alpha", snap.Nodes[0].ID)
	assert.Equal(t, "zeta", snap.Nodes[2].ID)

	snap.Nodes[1].AntennaIDs[0] = "mutated"
	n, _ := s.Node("mid")
	assert.Equal(t, []string{"mid-x"}, n.AntennaIDs)
}

func TestStore_SnapshotPointsTrackingAntennas(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.UpsertNode(model.Node{ID: "gs", Position: r3.Vec{}}))
	require.NoError(t, s.UpsertNode(model.Node{ID: "sc", Position: r3.Vec{Y: 4e7}}))

	tracking := dish("gs-x", "gs")
	tracking.TargetNode = "sc"
	require.NoError(t, s.UpsertAntenna(tracking))

	omni := dish("gs-omni", "gs")
	omni.GainDBi = 2
	omni.TargetNode = "sc"
	require.NoError(t, s.UpsertAntenna(omni))

	snap := s.Snapshot()
	byID := map[string]model.Antenna{}
	for _, a := range snap.Antennas {
		byID[a.ID] = a
	}
	assert.InDelta(t, 1, byID["gs-x"].Pointing.Y, 1e-12)
	assert.Zero(t, byID["gs-x"].Pointing.X)
	assert.Equal(t, r3.Vec{}, byID["gs-omni"].Pointing, "omni antennas are never pointed")
}

func TestStore_PropagateMovesNodesAndNormals(t *testing.T) {
	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	require.NoError(t, s.UpsertOccluder(model.Occluder{Name: "moon", Radius: 1737e3}))
	require.NoError(t, s.UpsertNode(model.Node{
		ID:            "lander",
		AnchorBody:    "moon",
		Position:      r3.Vec{Z: 1737e3},
		SurfaceNormal: r3.Vec{Z: 1},
	}))
	require.NoError(t, s.UpsertNode(model.Node{ID: "orbiter"}))
	require.NoError(t, s.SetOccluderMotion("moon", movingModel{rate: 1000, t0: t0}))
	require.NoError(t, s.SetMotion("orbiter", movingModel{base: r3.Vec{Y: 3e6}, rate: 10, t0: t0}))

	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })

	moved := s.Propagate(t0.Add(100 * time.Second))
	assert.Equal(t, 2, moved)
	require.Len(t, got, 1)
	assert.Equal(t, EventPositionsUpdated, got[0].Type)

	orbiter, _ := s.Node("orbiter")
	assert.InDelta(t, 1000, orbiter.Position.X, 1e-9)

	// The lander did not move but the moon did, so its normal tilts away
	// from +z toward -x.
	lander, _ := s.Node("lander")
	assert.Less(t, lander.SurfaceNormal.X, 0.0)
	assert.InDelta(t, 1, r3.Norm(lander.SurfaceNormal), 1e-12)
}

func TestStore_ReplaceSplitsMotionModels(t *testing.T) {
	s := NewStore()
	snap := &model.Snapshot{
		Nodes:     []model.Node{{ID: "sc"}},
		Occluders: []model.Occluder{{Name: "earth", Radius: 6371e3}},
		Settings:  model.Settings{AtmosphereCondition: 1},
	}
	s.Replace(snap, map[string]core.MotionModel{
		"sc":    core.StaticMotionModel{Position: r3.Vec{X: 7e6}},
		"earth": core.StaticMotionModel{Position: r3.Vec{Y: 1}},
		"ghost": core.StaticMotionModel{},
	})

	assert.Equal(t, 2, s.Propagate(time.Now()))
	n, _ := s.Node("sc")
	assert.Equal(t, r3.Vec{X: 7e6}, n.Position)
	assert.Equal(t, 1.0, s.Settings().AtmosphereCondition)

	snap.Nodes[0].ID = "changed"
	_, ok := s.Node("sc")
	assert.True(t, ok, "Replace must copy the snapshot")
}
