package core

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// SpeedOfLight in metres per second.
	SpeedOfLight = 299792458.0

	// BoltzmannDBm is Boltzmann's constant expressed in dBm/K/Hz.
	BoltzmannDBm = -198.599

	// minDistanceFrequency floors distance·frequency so co-located or
	// zero-frequency inputs never produce -Inf path loss.
	minDistanceFrequency = 1e-6

	// MaxPointingLossDB is returned when the peer lies outside the
	// antenna's beamwidth.
	MaxPointingLossDB = 100.0
)

// pathLossConstantDB is 20·log10(4π/c).
var pathLossConstantDB = 20 * math.Log10(4*math.Pi/SpeedOfLight)

// PathLossDB returns free-space path loss in dB for distance in metres and
// frequency in Hz.
func PathLossDB(distance, frequency float64) float64 {
	df := distance * frequency
	switch {
	case math.IsInf(df, 1):
		df = math.MaxFloat64
	case !(df > minDistanceFrequency):
		df = minDistanceFrequency
	}
	return 20*math.Log10(df) + pathLossConstantDB
}

// pointingLossCurve maps angle/beamwidth to dB of loss.
var pointingLossCurve = []struct{ x, db float64 }{
	{0, 0},
	{0.14, 0.25},
	{0.2, 0.5},
	{0.29, 1},
	{0.41, 2},
	{0.5, 3},
	{0.57, 4},
	{0.61, 4.5},
	{0.64, 5},
	{0.7, 6},
	{0.76, 7},
	{0.81, 8},
	{0.86, 9},
	{1.0, 10},
}

// PointingLossDB returns the loss for a peer angleDeg off boresight of an
// antenna with the given beamwidth.
func PointingLossDB(angleDeg, beamwidthDeg float64) float64 {
	if beamwidthDeg <= 0 || math.IsNaN(angleDeg) {
		return MaxPointingLossDB
	}
	x := math.Abs(angleDeg) / beamwidthDeg
	if x > 1 {
		return MaxPointingLossDB
	}
	i := sort.Search(len(pointingLossCurve), func(i int) bool {
		return pointingLossCurve[i].x >= x
	})
	if i == 0 {
		return pointingLossCurve[0].db
	}
	lo, hi := pointingLossCurve[i-1], pointingLossCurve[i]
	f := (x - lo.x) / (hi.x - lo.x)
	return lo.db + f*(hi.db-lo.db)
}

// antennaPointingLossDB is the loss at one end of a link: zero for omni or
// untargeted antennas, otherwise the loss at the angle between the pointing
// vector and the direction to the peer.
func antennaPointingLossDB(a *AntennaSnap, self, peer r3.Vec) float64 {
	if a.Omni || !a.Targeted {
		return 0
	}
	return PointingLossDB(angleBetweenDeg(a.Pointing, r3.Sub(peer, self)), a.Beamwidth)
}

// ReceivedPowerDBm combines the link budget terms.
func ReceivedPowerDBm(txPowerDBm, txGainDBi, pathLossDB, txPointingDB, rxPointingDB, rxGainDBi float64) float64 {
	return txPowerDBm + txGainDBi - pathLossDB - txPointingDB - rxPointingDB + rxGainDBi
}

// NoiseDensityDBm returns N0 in dBm/Hz for a noise temperature in kelvin.
func NoiseDensityDBm(noiseTempK float64) float64 {
	if !(noiseTempK > 0) {
		noiseTempK = minNoiseTemperature
	}
	return BoltzmannDBm + 10*math.Log10(noiseTempK)
}
