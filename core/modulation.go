package core

import "math"

// maxModulationMarginDB caps the margin used to pick a modulation order.
const maxModulationMarginDB = 100.0

// dBPerModulationBit is the extra margin needed per modulation bit.
const dBPerModulationBit = 3.0

// RateLimits is the hardware envelope both ends of a link support.
type RateLimits struct {
	MinSymbolRate float64
	MaxSymbolRate float64
	MinBits       int
	MaxBits       int
}

// PairLimits intersects the symbol-rate and modulation ranges of two
// antennas. ok is false when the ranges do not overlap.
func PairLimits(tx, rx *AntennaSnap) (RateLimits, bool) {
	lim := RateLimits{
		MinSymbolRate: math.Max(tx.MinSymbolRate, rx.MinSymbolRate),
		MaxSymbolRate: math.Min(tx.MaxSymbolRate, rx.MaxSymbolRate),
		MinBits:       max(tx.MinModBits, rx.MinModBits, 1),
		MaxBits:       min(tx.MaxModBits, rx.MaxModBits),
	}
	if !(lim.MaxSymbolRate > 0) || lim.MinSymbolRate > lim.MaxSymbolRate {
		return lim, false
	}
	if lim.MaxBits < lim.MinBits {
		return lim, false
	}
	return lim, true
}

// RateSelection is the outcome of adaptive modulation and coding for one
// directed candidate.
type RateSelection struct {
	MaxBitRate     float64 // linear capacity, 10^((Pr-minEb)/10)
	SymbolRate     float64
	ModulationBits int
	DataRate       float64
	MaxDataRate    float64 // at full hardware symbol rate and modulation
	Steps          int     // floor(log2(MaxDataRate/DataRate))
	MaxSteps       int
}

// MinEbDBm is the minimum energy per bit needed to close with tier.
func MinEbDBm(tier CodingTier, n0DBm float64) float64 {
	return tier.RequiredEbN0dB() + n0DBm
}

// dataRate applies the rate convention: the modulation factor is
// 2^(bits-1), not 2^bits.
func dataRate(symbolRate, codingRate float64, bits int) float64 {
	return symbolRate * codingRate * math.Pow(2, float64(bits-1))
}

// SelectRate chooses symbol rate and modulation order for a link with
// received power rxPowerDBm and minimum energy per bit minEbDBm.
func SelectRate(rxPowerDBm, minEbDBm float64, tier CodingTier, lim RateLimits) RateSelection {
	codingRate := tier.Rate()
	sel := RateSelection{
		MaxBitRate:  math.Pow(10, (rxPowerDBm-minEbDBm)/10),
		MaxDataRate: dataRate(lim.MaxSymbolRate, codingRate, lim.MaxBits),
	}
	if floor := lim.MinSymbolRate * codingRate; floor > 0 && sel.MaxDataRate > 0 {
		sel.MaxSteps = int(math.Floor(math.Log2(sel.MaxDataRate / floor)))
		if sel.MaxSteps < 0 {
			sel.MaxSteps = 0
		}
	}

	capacity := sel.MaxBitRate
	if math.IsNaN(capacity) || capacity < lim.MinSymbolRate || lim.MaxSymbolRate <= 0 {
		return sel
	}

	if capacity <= lim.MaxSymbolRate {
		// Below one bit per symbol at full rate: halve the symbol rate until
		// it fits, at binary signalling.
		sym := lim.MaxSymbolRate
		for sym > capacity {
			sym /= 2
		}
		if sym < lim.MinSymbolRate {
			sym = lim.MinSymbolRate
		}
		sel.SymbolRate = sym
		sel.ModulationBits = 1
	} else {
		margin := rxPowerDBm - minEbDBm - 10*math.Log10(lim.MaxSymbolRate)
		margin = clamp(margin, 0, maxModulationMarginDB)
		sel.SymbolRate = lim.MaxSymbolRate
		sel.ModulationBits = min(lim.MaxBits, 1+int(math.Floor(margin/dBPerModulationBit)))
	}

	sel.DataRate = dataRate(sel.SymbolRate, codingRate, sel.ModulationBits)
	if sel.DataRate > 0 && sel.MaxDataRate > 0 {
		sel.Steps = int(math.Floor(math.Log2(sel.MaxDataRate / sel.DataRate)))
		if sel.Steps < 0 {
			sel.Steps = 0
		}
	}
	return sel
}

// QualityMetric maps quantisation steps onto [0, 1]; 1 is a link running at
// its theoretical maximum.
func QualityMetric(steps, maxSteps int) float64 {
	if maxSteps < 0 {
		maxSteps = 0
	}
	return clamp(1-float64(steps)/float64(maxSteps+1), 0, 1)
}
