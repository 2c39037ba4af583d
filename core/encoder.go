package core

import "fmt"

// CodingTier is a rung on the forward-error-correction ladder. Higher tiers
// close links at lower Eb/N0.
type CodingTier int

const (
	CodingNone CodingTier = iota
	CodingHamming
	CodingReedSolomon
	CodingConvolutional
	CodingConcatenated
	CodingTurboHalf
	CodingTurboSixth
	CodingLDPC
)

type codingSpec struct {
	name           string
	rate           float64
	requiredEbN0dB float64
}

var codingLadder = [...]codingSpec{
	CodingNone:          {name: "none", rate: 1, requiredEbN0dB: 10.5},
	CodingHamming:       {name: "hamming-7-4", rate: 4.0 / 7.0, requiredEbN0dB: 9.5},
	CodingReedSolomon:   {name: "reed-solomon-255-223", rate: 223.0 / 255.0, requiredEbN0dB: 6.8},
	CodingConvolutional: {name: "convolutional-k7-r1/2", rate: 0.5, requiredEbN0dB: 4.5},
	CodingConcatenated:  {name: "rs-conv-concatenated", rate: 0.437, requiredEbN0dB: 2.5},
	CodingTurboHalf:     {name: "turbo-r1/2", rate: 0.5, requiredEbN0dB: 1.0},
	CodingTurboSixth:    {name: "turbo-r1/6", rate: 1.0 / 6.0, requiredEbN0dB: -0.2},
	CodingLDPC:          {name: "ldpc-ar4ja-r1/2", rate: 0.5, requiredEbN0dB: 0.9},
}

// CodingTierForTechLevel maps an antenna tech level onto the ladder,
// clamping out-of-range levels to its ends.
func CodingTierForTechLevel(level int) CodingTier {
	if level < 0 {
		return CodingNone
	}
	if level >= len(codingLadder) {
		return CodingTier(len(codingLadder) - 1)
	}
	return CodingTier(level)
}

// MatchTier returns the tier both ends can run: the lower ordinal.
func MatchTier(a, b CodingTier) CodingTier {
	return min(a, b)
}

// Rate is the code rate (information bits per coded bit).
func (t CodingTier) Rate() float64 {
	return codingLadder[t.clamped()].rate
}

// RequiredEbN0dB is the Eb/N0 needed to close a link with this tier.
func (t CodingTier) RequiredEbN0dB() float64 {
	return codingLadder[t.clamped()].requiredEbN0dB
}

func (t CodingTier) String() string {
	return codingLadder[t.clamped()].name
}

// MarshalText renders the tier by name.
func (t CodingTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name written by MarshalText.
func (t *CodingTier) UnmarshalText(text []byte) error {
	for i, spec := range codingLadder {
		if spec.name == string(text) {
			*t = CodingTier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown coding tier %q", text)
}

func (t CodingTier) clamped() CodingTier {
	return CodingTierForTechLevel(int(t))
}
