package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minOcclusionSeparation is the segment length (metres) below which two
// endpoints are considered co-located and never occluded.
const minOcclusionSeparation = 1e-3

// surfaceTolerance shrinks an occluder's radius by this fraction so nodes
// placed on its surface are not blocked by rounding in their own position.
const surfaceTolerance = 1e-9

// closestPointOnSegment returns the point of segment [p1, p2] nearest to q.
func closestPointOnSegment(p1, p2, q r3.Vec) r3.Vec {
	v := r3.Sub(p2, p1)
	a := r3.Dot(v, v)
	if a == 0 {
		return p1
	}

	// t* minimises |p1 + t v - q|^2 over t, clamped to the segment.
	t := r3.Dot(r3.Sub(q, p1), v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return r3.Add(p1, r3.Scale(t, v))
}

// segmentBlockedBySphere reports whether the segment between p1 and p2
// passes within radius of centre. Non-finite inputs are never blocking.
func segmentBlockedBySphere(p1, p2, centre r3.Vec, radius float64) bool {
	if r3.Norm(r3.Sub(p2, p1)) < minOcclusionSeparation {
		return false
	}
	closest := closestPointOnSegment(p1, p2, centre)
	d := r3.Norm(r3.Sub(closest, centre))
	if math.IsNaN(d) {
		return false
	}
	return d < radius*(1-surfaceTolerance)
}

// angleBetweenDeg returns the angle between u and v in degrees. A zero
// vector yields 0.
func angleBetweenDeg(u, v r3.Vec) float64 {
	nu := r3.Norm(u)
	nv := r3.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	cosGamma := r3.Dot(u, v) / (nu * nv)
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	return math.Acos(cosGamma) * 180.0 / math.Pi
}

// ElevationDegrees returns the elevation of target above the local horizon
// defined by the outward surface normal at observer. 0° = horizon,
// 90° = zenith. A zero normal or coincident points yield 90.
func ElevationDegrees(normal, observer, target r3.Vec) float64 {
	v := r3.Sub(target, observer)
	if r3.Norm2(v) == 0 || r3.Norm2(normal) == 0 {
		return 90
	}
	return 90.0 - angleBetweenDeg(normal, v)
}

// circleIntersectionArea returns the overlap area of two circles with radii
// r1, r2 whose centres are d apart.
func circleIntersectionArea(r1, r2, d float64) float64 {
	if r1 <= 0 || r2 <= 0 {
		return 0
	}
	if d >= r1+r2 {
		return 0
	}
	if d <= math.Abs(r1-r2) {
		r := math.Min(r1, r2)
		return math.Pi * r * r
	}
	a1 := clampUnit((d*d + r1*r1 - r2*r2) / (2 * d * r1))
	a2 := clampUnit((d*d + r2*r2 - r1*r1) / (2 * d * r2))
	k := (-d + r1 + r2) * (d + r1 - r2) * (d - r1 + r2) * (d + r1 + r2)
	if k < 0 {
		k = 0
	}
	return r1*r1*math.Acos(a1) + r2*r2*math.Acos(a2) - 0.5*math.Sqrt(k)
}

func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
