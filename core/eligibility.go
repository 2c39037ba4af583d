package core

import "context"

// PairIndex returns the slot of ordered node pair (i, j) in an n×n map.
func PairIndex(i, j int32, n int) int {
	return int(i)*n + int(j)
}

// pairEligible applies every node-pair pre-filter except occlusion.
func pairEligible(a, b *NodeSnap) bool {
	if a.IsHome && b.IsHome {
		return false
	}
	return a.CanCommunicate && b.CanCommunicate
}

// pairOccluded reports whether any occluder sphere blocks the straight
// line between two nodes.
func pairOccluded(reg *Registry, i, j int32) bool {
	p1 := reg.Nodes[i].Position
	p2 := reg.Nodes[j].Position
	for k := range reg.Occluders {
		occ := &reg.Occluders[k]
		if segmentBlockedBySphere(p1, p2, occ.Position, occ.Radius) {
			return true
		}
	}
	return false
}

// NodePairValidity computes the ordered node-pair validity map keyed by
// PairIndex. Rows are evaluated in parallel; each row is written by exactly
// one worker.
func NodePairValidity(ctx context.Context, reg *Registry, workers int) ([]bool, error) {
	n := len(reg.Nodes)
	valid := make([]bool, n*n)
	err := parallelFor(ctx, n, workers, 8, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a := &reg.Nodes[i]
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				if !pairEligible(a, &reg.Nodes[j]) {
					continue
				}
				if pairOccluded(reg, int32(i), int32(j)) {
					continue
				}
				valid[i*n+j] = true
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return valid, nil
}
