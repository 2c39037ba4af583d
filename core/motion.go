package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrBadTLE is returned for two-line element sets SGP4 cannot parse.
var ErrBadTLE = errors.New("invalid two-line element set")

// MotionModel yields a node's position at a simulation time. ok is false
// when no position can be produced (for example a decayed orbit).
type MotionModel interface {
	PositionAt(simTime time.Time) (pos r3.Vec, ok bool)
}

// StaticMotionModel always reports the same position.
type StaticMotionModel struct {
	Position r3.Vec
}

// PositionAt returns the fixed position.
func (m StaticMotionModel) PositionAt(time.Time) (r3.Vec, bool) {
	return m.Position, true
}

// OrbitalSGP4MotionModel uses a TLE and SGP4 to propagate a satellite.
type OrbitalSGP4MotionModel struct {
	sat satellite.Satellite
}

// NewOrbitalModelFromTLE constructs an orbital model from TLE lines.
func NewOrbitalModelFromTLE(line1, line2 string) (m *OrbitalSGP4MotionModel, err error) {
	line1, line2 = strings.TrimSpace(line1), strings.TrimSpace(line2)
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") || len(line1) < 69 || len(line2) < 69 {
		return nil, fmt.Errorf("%w: malformed lines", ErrBadTLE)
	}
	// go-satellite panics on unparsable fields.
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: %v", ErrBadTLE, r)
		}
	}()
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &OrbitalSGP4MotionModel{sat: sat}, nil
}

// PositionAt propagates the satellite to simTime and returns its
// Earth-fixed position. go-satellite works in kilometres; we return metres.
func (m *OrbitalSGP4MotionModel) PositionAt(simTime time.Time) (r3.Vec, bool) {
	simTime = simTime.UTC()
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	const kmToM = 1000.0
	pos := r3.Vec{X: posECEF.X * kmToM, Y: posECEF.Y * kmToM, Z: posECEF.Z * kmToM}
	if !finiteVec(pos) || r3.Norm2(pos) == 0 {
		return r3.Vec{}, false
	}
	return pos, true
}

// NewMotionModel picks SGP4 when both TLE lines are present, otherwise a
// static model at pos.
func NewMotionModel(pos r3.Vec, tle1, tle2 string) (MotionModel, error) {
	if tle1 != "" && tle2 != "" {
		m, err := NewOrbitalModelFromTLE(tle1, tle2)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return StaticMotionModel{Position: pos}, nil
}

func finiteVec(v r3.Vec) bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
