package core

import (
	"math"
	"testing"
)

func TestCodingLadder(t *testing.T) {
	if got := CodingTierForTechLevel(-3); got != CodingNone {
		t.Fatalf("negative tech level = %v", got)
	}
	if got := CodingTierForTechLevel(99); got != CodingLDPC {
		t.Fatalf("oversized tech level = %v", got)
	}
	if got := MatchTier(CodingTurboHalf, CodingHamming); got != CodingHamming {
		t.Fatalf("MatchTier = %v, want the lower tier", got)
	}
	if CodingReedSolomon.Rate() != 223.0/255.0 || CodingReedSolomon.RequiredEbN0dB() != 6.8 {
		t.Fatalf("reed-solomon parameters wrong")
	}
	text, err := CodingTurboSixth.MarshalText()
	if err != nil || string(text) != "turbo-r1/6" {
		t.Fatalf("MarshalText = %q, %v", text, err)
	}
}

func TestPairLimits(t *testing.T) {
	tx := &AntennaSnap{MinSymbolRate: 1e3, MaxSymbolRate: 1e6, MinModBits: 1, MaxModBits: 6}
	rx := &AntennaSnap{MinSymbolRate: 1e4, MaxSymbolRate: 5e5, MinModBits: 0, MaxModBits: 3}

	lim, ok := PairLimits(tx, rx)
	if !ok {
		t.Fatalf("overlapping ranges rejected")
	}
	want := RateLimits{MinSymbolRate: 1e4, MaxSymbolRate: 5e5, MinBits: 1, MaxBits: 3}
	if lim != want {
		t.Fatalf("limits = %+v, want %+v", lim, want)
	}

	rx.MinSymbolRate = 2e6
	rx.MaxSymbolRate = 3e6
	if _, ok := PairLimits(tx, rx); ok {
		t.Fatalf("disjoint symbol-rate ranges accepted")
	}

	rx.MinSymbolRate, rx.MaxSymbolRate = 1e3, 1e6
	rx.MinModBits, rx.MaxModBits = 7, 8
	if _, ok := PairLimits(tx, rx); ok {
		t.Fatalf("disjoint modulation ranges accepted")
	}
}

func TestSelectRate_StepsDownSymbolRate(t *testing.T) {
	lim := RateLimits{MinSymbolRate: 1e3, MaxSymbolRate: 1e6, MinBits: 1, MaxBits: 4}

	// 50 dB of Pr over minEb is a capacity of 1e5 bit/s: the symbol rate
	// halves from 1e6 until it fits.
	sel := SelectRate(50, 0, CodingReedSolomon, lim)
	if sel.SymbolRate != 1e6/16 || sel.ModulationBits != 1 {
		t.Fatalf("selection = %+v, want 62500 sym/s at 1 bit", sel)
	}
	if want := 62500 * CodingReedSolomon.Rate(); !almostEqual(sel.DataRate, want, 1e-9) {
		t.Fatalf("DataRate = %v, want %v", sel.DataRate, want)
	}
}

func TestSelectRate_ModulationFromMargin(t *testing.T) {
	lim := RateLimits{MinSymbolRate: 1e3, MaxSymbolRate: 1e6, MinBits: 1, MaxBits: 8}

	// 60 dB covers the symbol rate; 7 dB more buys floor(7/3) = 2 extra bits.
	sel := SelectRate(67, 0, CodingNone, lim)
	if sel.SymbolRate != 1e6 || sel.ModulationBits != 3 {
		t.Fatalf("selection = %+v, want 3 bits at full rate", sel)
	}
	// The modulation factor is 2^(bits-1).
	if sel.DataRate != 4e6 {
		t.Fatalf("DataRate = %v, want 4e6", sel.DataRate)
	}

	capped := SelectRate(200, 0, CodingNone, lim)
	if capped.ModulationBits != 8 {
		t.Fatalf("huge margin bits = %d, want hardware max 8", capped.ModulationBits)
	}
	if capped.DataRate != capped.MaxDataRate || capped.Steps != 0 {
		t.Fatalf("capped link should run at its maximum: %+v", capped)
	}
}

func TestSelectRate_MonotoneAndBounded(t *testing.T) {
	lim := RateLimits{MinSymbolRate: 1e3, MaxSymbolRate: 1e6, MinBits: 1, MaxBits: 4}
	tier := CodingReedSolomon

	prev := 0.0
	for pr := 0.0; pr <= 90; pr += 0.25 {
		sel := SelectRate(pr, 0, tier, lim)
		if sel.DataRate < prev {
			t.Fatalf("rate decreased at Pr=%v: %v < %v", pr, sel.DataRate, prev)
		}
		if sel.DataRate > sel.MaxBitRate {
			t.Fatalf("rate %v exceeds capacity %v at Pr=%v", sel.DataRate, sel.MaxBitRate, pr)
		}
		if sel.DataRate > sel.MaxDataRate {
			t.Fatalf("rate %v exceeds hardware maximum %v", sel.DataRate, sel.MaxDataRate)
		}
		if sel.DataRate > 0 {
			if sel.Steps < 0 || sel.Steps > sel.MaxSteps {
				t.Fatalf("steps %d outside [0, %d] at Pr=%v", sel.Steps, sel.MaxSteps, pr)
			}
		}
		prev = sel.DataRate
	}
}

func TestSelectRate_MaxSteps(t *testing.T) {
	lim := RateLimits{MinSymbolRate: 1e3, MaxSymbolRate: 1e6, MinBits: 1, MaxBits: 4}
	sel := SelectRate(0, 0, CodingReedSolomon, lim)
	want := int(math.Floor(math.Log2(1e6 * 8 / 1e3)))
	if sel.MaxSteps != want {
		t.Fatalf("MaxSteps = %d, want %d", sel.MaxSteps, want)
	}
}

func TestQualityMetric(t *testing.T) {
	if got := QualityMetric(0, 12); got != 1 {
		t.Fatalf("full-rate quality = %v", got)
	}
	if got := QualityMetric(12, 12); !almostEqual(got, 1.0/13, 1e-12) {
		t.Fatalf("min-rate quality = %v", got)
	}
	if got := QualityMetric(50, 3); got != 0 {
		t.Fatalf("quality below range = %v, want 0", got)
	}
}

func TestCodingTierTextRoundTrip(t *testing.T) {
	var tier CodingTier
	if err := tier.UnmarshalText([]byte("ldpc-ar4ja-r1/2")); err != nil || tier != CodingLDPC {
		t.Fatalf("UnmarshalText = %v, %v", tier, err)
	}
	if err := tier.UnmarshalText([]byte("morse")); err == nil {
		t.Fatalf("unknown tier accepted")
	}
}
