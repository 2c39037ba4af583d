package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/rf-link-engine/model"
)

const (
	// CosmicBackgroundK is the microwave background temperature.
	CosmicBackgroundK = 2.725

	// starSpectralIndex scales a star's surface temperature to its radio
	// brightness temperature as a power of wavelength in millimetres.
	starSpectralIndex = 0.24517

	// minNoiseTemperature floors composite noise so N0 stays finite.
	minNoiseTemperature = 1.0

	// minAirMassElevationDeg caps the air-mass factor near the horizon.
	minAirMassElevationDeg = 0.5

	// nearBodyRadii is the distance, in body radii, below which angular
	// size uses the exact asin form instead of the small-angle atan2 form.
	nearBodyRadii = 100.0
)

type zenithBand struct {
	dry, wet float64 // dB at atmosphere condition 0 and 1
}

var (
	zenithX  = zenithBand{dry: 0.037, wet: 0.069} // 3–10 GHz
	zenithKu = zenithBand{dry: 0.080, wet: 0.250} // 10–27 GHz
	zenithKa = zenithBand{dry: 0.120, wet: 0.580} // above 27 GHz
)

// AtmosphereZenithAttenuationDB returns the one-way zenith attenuation for
// frequency freqGHz under atmosphere condition cd in [0, 1].
func AtmosphereZenithAttenuationDB(freqGHz, cd float64) float64 {
	cd = clamp(cd, 0, 1)
	var band zenithBand
	switch {
	case freqGHz < 3:
		return 0.035
	case freqGHz < 10:
		band = zenithX
	case freqGHz < 27:
		band = zenithKu
	default:
		band = zenithKa
	}
	return band.dry + cd*(band.wet-band.dry)
}

// AtmosphereMeanTemperature is the mean effective radiating temperature of
// the atmosphere, in kelvin.
func AtmosphereMeanTemperature(cd float64) float64 {
	return 255 + 25*clamp(cd, 0, 1)
}

// AtmosphericLossDB scales zenith attenuation by the air mass along a path
// at elevationDeg.
func AtmosphericLossDB(elevationDeg, freqGHz, cd float64) float64 {
	elev := math.Max(elevationDeg, minAirMassElevationDeg)
	if math.IsNaN(elev) {
		elev = 90
	}
	return AtmosphereZenithAttenuationDB(freqGHz, cd) / math.Sin(elev*math.Pi/180)
}

// AtmosphericNoiseTemp converts the slant-path loss into an emission
// temperature in kelvin.
func AtmosphericNoiseTemp(elevationDeg, freqGHz, cd float64) float64 {
	loss := AtmosphericLossDB(elevationDeg, freqGHz, cd)
	return AtmosphereMeanTemperature(cd) * (1 - math.Pow(10, -loss/10))
}

// CosmicBackgroundTemp returns the CMB contribution seen through lossDB of
// atmosphere.
func CosmicBackgroundTemp(lossDB float64) float64 {
	return CosmicBackgroundK / math.Pow(10, lossDB/10)
}

// StarRadioTemperature scales a star's surface temperature to a radio
// brightness temperature at freqHz.
func StarRadioTemperature(surfaceK, freqHz float64) float64 {
	if freqHz <= 0 {
		return 0
	}
	wavelengthMM := 1000 * SpeedOfLight / freqHz
	return surfaceK * math.Pow(wavelengthMM, starSpectralIndex)
}

// bodyTemperature is the brightness temperature a body presents at freqHz.
func bodyTemperature(body *model.Occluder, freqHz float64) float64 {
	if body.IsStar {
		return StarRadioTemperature(body.Temperature, freqHz)
	}
	return body.Temperature
}

// angularRadiusDeg is the apparent angular radius of a sphere of radius r
// seen from distance d.
func angularRadiusDeg(r, d float64) float64 {
	switch {
	case r <= 0:
		return 0
	case d <= r:
		return 90
	case d < nearBodyRadii*r:
		return math.Asin(r/d) * 180 / math.Pi
	default:
		return math.Atan2(r, d) * 180 / math.Pi
	}
}

// viewFraction is the share of an antenna's view cone (half-angle viewR)
// covered by a disk of angular radius bodyR whose centre is angle off
// boresight. All angles in degrees.
func viewFraction(angle, viewR, bodyR float64) float64 {
	switch {
	case viewR <= 0 || bodyR <= 0:
		return 0
	case angle+viewR <= bodyR:
		return 1
	case angle+bodyR <= viewR:
		return (bodyR * bodyR) / (viewR * viewR)
	case angle >= viewR+bodyR:
		return 0
	default:
		return circleIntersectionArea(viewR, bodyR, angle) / (math.Pi * viewR * viewR)
	}
}

// BodyBrightnessTemp is the noise temperature body adds to a directional
// antenna at rxPos looking along boresight with the given beamwidth.
func BodyBrightnessTemp(boresight, rxPos r3.Vec, beamwidthDeg, freqHz float64, body *model.Occluder) float64 {
	t := bodyTemperature(body, freqHz)
	if math.Round(t) == 0 || math.IsNaN(t) {
		return 0
	}
	if r3.Norm2(boresight) == 0 {
		return 0
	}

	toBody := r3.Sub(body.Position, rxPos)
	bodyR := angularRadiusDeg(body.Radius, r3.Norm(toBody))
	angle := angleBetweenDeg(boresight, toBody)
	fraction := viewFraction(angle, beamwidthDeg/2, bodyR)
	if fraction <= 0 {
		return 0
	}

	// De-rate by the gain toward the nearest visible edge of the disk.
	edge := math.Max(0, angle-bodyR)
	derate := math.Pow(10, -PointingLossDB(edge, beamwidthDeg)/10)
	return t * fraction * derate
}

// antennaSelfNoise is the receiver's own noise temperature: the body
// ambient figure for anchored nodes, else the antenna's microwave noise.
func antennaSelfNoise(node *NodeSnap, a *AntennaSnap) float64 {
	if node.Anchored() && node.AmbientTemp > 0 {
		return node.AmbientTemp
	}
	return a.MicrowaveTemp
}

// receiverNoiseTemp sums every noise source seen by antenna rx on rxNode
// while receiving from txPos. selfNoise comes from antennaSelfNoise.
func receiverNoiseTemp(reg *Registry, rxNode *NodeSnap, rx *AntennaSnap, txPos r3.Vec, selfNoise float64) float64 {
	t := selfNoise
	freqGHz := rx.FrequencyHz / 1e9
	cd := reg.Settings.AtmosphereCondition

	lossDB := 0.0
	if rxNode.Anchored() {
		elev := ElevationDegrees(rxNode.SurfaceNormal, rxNode.Position, txPos)
		lossDB = AtmosphericLossDB(elev, freqGHz, cd)
		t += AtmosphericNoiseTemp(elev, freqGHz, cd)
	}
	t += CosmicBackgroundTemp(lossDB)

	if !rx.Omni {
		boresight := rx.Pointing
		if !rx.Targeted {
			boresight = r3.Sub(txPos, rxNode.Position)
		}
		for k := range reg.Occluders {
			if int32(k) == rxNode.AnchorBody {
				continue
			}
			t += BodyBrightnessTemp(boresight, rxNode.Position, rx.Beamwidth, rx.FrequencyHz, &reg.Occluders[k])
		}
	}

	if !(t >= minNoiseTemperature) {
		t = minNoiseTemperature
	}
	return t
}
