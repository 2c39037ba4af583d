package core

// DirectedLink is the chosen antenna combination for one direction of a
// node pair.
type DirectedLink struct {
	TxAntenna string `json:"tx_antenna"`
	RxAntenna string `json:"rx_antenna"`

	DataRate    float64 `json:"data_rate"`
	MaxDataRate float64 `json:"max_data_rate"`
	Quality     float64 `json:"quality"` // QualityMetric, informational only
	Steps       int     `json:"steps"`

	SymbolRate     float64    `json:"symbol_rate"`
	ModulationBits int        `json:"modulation_bits"`
	Coding         CodingTier `json:"coding"`
	RxPowerDBm     float64    `json:"rx_power_dbm"`
	NoiseTempK     float64    `json:"noise_temp_k"`
}

// Usable reports whether the direction closes with a positive rate.
func (d DirectedLink) Usable() bool {
	return d.DataRate > 0
}

// PairDecision is the reducer's verdict for an unordered node pair. Forward
// is NodeA -> NodeB, Reverse is NodeB -> NodeA.
type PairDecision struct {
	NodeA    string       `json:"node_a"`
	NodeB    string       `json:"node_b"`
	Accepted bool         `json:"accepted"`
	Forward  DirectedLink `json:"forward"`
	Reverse  DirectedLink `json:"reverse"`

	forward int // candidate slot, -1 when no candidate
	reverse int
}

// ForwardCandidate returns the slot of the chosen forward candidate.
func (d PairDecision) ForwardCandidate() (int, bool) { return d.forward, d.forward >= 0 }

// ReverseCandidate returns the slot of the chosen reverse candidate.
func (d PairDecision) ReverseCandidate() (int, bool) { return d.reverse, d.reverse >= 0 }

// ReduceBestLinks picks, for every ordered node pair, the candidate with the
// highest data rate (first found wins ties), then pairs the two directions.
// A pair is accepted only when both directions have a positive rate.
// Pairs without any candidate are omitted; they are implicitly rejected.
func ReduceBestLinks(reg *Registry, c *Candidates) []PairDecision {
	n := len(reg.Nodes)
	if n == 0 || c.Len() == 0 {
		return nil
	}

	best := make([]int32, n*n)
	for i := range best {
		best[i] = -1
	}
	for k := 0; k < c.Len(); k++ {
		slot := PairIndex(c.TxNode[k], c.RxNode[k], n)
		cur := best[slot]
		if cur < 0 || c.DataRate[k] > c.DataRate[cur] {
			best[slot] = int32(k)
		}
	}

	var out []PairDecision
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			fwd := best[i*n+j]
			rev := best[j*n+i]
			if fwd < 0 && rev < 0 {
				continue
			}
			d := PairDecision{
				NodeA:   reg.NodeID(int32(i)),
				NodeB:   reg.NodeID(int32(j)),
				forward: int(fwd),
				reverse: int(rev),
			}
			if fwd >= 0 {
				d.Forward = directedFromCandidate(reg, c, int(fwd))
			}
			if rev >= 0 {
				d.Reverse = directedFromCandidate(reg, c, int(rev))
			}
			d.Accepted = d.Forward.Usable() && d.Reverse.Usable()
			out = append(out, d)
		}
	}
	return out
}

func directedFromCandidate(reg *Registry, c *Candidates, k int) DirectedLink {
	d := DirectedLink{
		TxAntenna:      reg.AntennaID(c.Tx[k]),
		RxAntenna:      reg.AntennaID(c.Rx[k]),
		DataRate:       c.DataRate[k],
		MaxDataRate:    c.MaxDataRate[k],
		Steps:          c.RateSteps[k],
		SymbolRate:     c.SymbolRate[k],
		ModulationBits: c.ModulationBits[k],
		Coding:         c.Tier[k],
		RxPowerDBm:     c.RxPowerDBm[k],
		NoiseTempK:     c.NoiseTempK[k],
	}
	if d.DataRate > 0 {
		d.Quality = QualityMetric(c.RateSteps[k], c.MaxRateSteps[k])
	}
	return d
}
