package core

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/rf-link-engine/model"
)

// testAntenna is a 20 dBi S-band antenna with a modest rate envelope.
func testAntenna(id, owner string) model.Antenna {
	return model.Antenna{
		ID:                id,
		OwnerID:           owner,
		TxPowerDBm:        40,
		GainDBi:           20,
		FrequencyHz:       2e9,
		Band:              "S",
		MinSymbolRate:     1e3,
		MaxSymbolRate:     1e6,
		MinModulationBits: 1,
		MaxModulationBits: 4,
		TechLevel:         int(CodingReedSolomon),
		MicrowaveTemp:     100,
	}
}

func testNode(id string, pos r3.Vec, antennas ...string) model.Node {
	return model.Node{
		ID:             id,
		Position:       pos,
		CanCommunicate: true,
		AntennaIDs:     antennas,
	}
}

// pairSnapshot places two single-antenna nodes dist metres apart on the
// x axis with no occluders.
func pairSnapshot(dist float64) *model.Snapshot {
	return &model.Snapshot{
		Nodes: []model.Node{
			testNode("a", r3.Vec{}, "a-s"),
			testNode("b", r3.Vec{X: dist}, "b-s"),
		},
		Antennas: []model.Antenna{
			testAntenna("a-s", "a"),
			testAntenna("b-s", "b"),
		},
		Settings: model.DefaultSettings(),
	}
}

// earth is an occluder sphere at the origin.
func earth() model.Occluder {
	return model.Occluder{Name: "earth", Radius: 6371e3, Temperature: 290}
}

func mustRegistry(snap *model.Snapshot) *Registry {
	reg, err := BuildRegistry(snap)
	if err != nil {
		panic(err)
	}
	return reg
}
