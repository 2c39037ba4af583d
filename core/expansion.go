package core

// ExpandCandidates cross-products the antennas of every valid ordered node
// pair and keeps same-band combinations. The first node of the pair
// transmits. Occlusion is already folded into valid and is not re-tested.
//
// Order is deterministic: tx node, rx node, tx antenna order, rx antenna
// order. The reducer's first-found tie-break depends on it.
func ExpandCandidates(reg *Registry, valid []bool) *Candidates {
	n := len(reg.Nodes)
	c := &Candidates{}
	for i := 0; i < n; i++ {
		txAnts := reg.Nodes[i].Antennas
		if len(txAnts) == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			if !valid[i*n+j] {
				continue
			}
			for _, a := range txAnts {
				band := reg.Antennas[a].Band
				for _, b := range reg.Nodes[j].Antennas {
					if reg.Antennas[b].Band != band {
						continue
					}
					c.TxNode = append(c.TxNode, int32(i))
					c.RxNode = append(c.RxNode, int32(j))
					c.Tx = append(c.Tx, a)
					c.Rx = append(c.Rx, b)
				}
			}
		}
	}
	c.allocate()
	return c
}
