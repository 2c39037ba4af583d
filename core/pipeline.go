package core

import (
	"context"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pipeline stage names. They double as task names and metric labels.
const (
	StageEligibility = "eligibility"
	StageExpansion   = "expansion"
	StagePathLoss    = "pathloss"
	StageTxPointing  = "txpointing"
	StageRxPointing  = "rxpointing"
	StageCoding      = "coding"
	StageSelfNoise   = "selfnoise"
	StageNoise       = "noise"
	StageRxPower     = "rxpower"
	StageMinEb       = "mineb"
	StageBitRate     = "bitrate"
)

// pass holds the arrays of one recomputation pass. Every field is written by
// exactly one stage.
type pass struct {
	reg       *Registry
	workers   int
	chunk     int
	valid     []bool      // eligibility
	cand      *Candidates // expansion allocates, later stages fill columns
	selfNoise []float64   // selfnoise, per antenna slot
}

// forEach runs fn over every candidate slot in parallel.
func (p *pass) forEach(ctx context.Context, fn func(k int)) error {
	return parallelFor(ctx, p.cand.Len(), p.workers, p.chunk, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			fn(k)
		}
	})
}

// newPipeline wires the stages with their data dependencies.
func newPipeline(p *pass) (*TaskGraph, error) {
	g := NewTaskGraph()
	steps := []struct {
		name string
		run  func(context.Context) error
		deps []string
	}{
		{StageEligibility, p.runEligibility, nil},
		{StageExpansion, p.runExpansion, []string{StageEligibility}},
		{StageSelfNoise, p.runSelfNoise, nil},
		{StagePathLoss, p.runPathLoss, []string{StageExpansion}},
		{StageTxPointing, p.runTxPointing, []string{StageExpansion}},
		{StageRxPointing, p.runRxPointing, []string{StageExpansion}},
		{StageCoding, p.runCoding, []string{StageExpansion}},
		{StageNoise, p.runNoise, []string{StageExpansion, StageSelfNoise}},
		{StageRxPower, p.runRxPower, []string{StagePathLoss, StageTxPointing, StageRxPointing}},
		{StageMinEb, p.runMinEb, []string{StageCoding, StageNoise}},
		{StageBitRate, p.runBitRate, []string{StageRxPower, StageMinEb}},
	}
	for _, s := range steps {
		if err := g.Add(s.name, s.run, s.deps...); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (p *pass) runEligibility(ctx context.Context) error {
	valid, err := NodePairValidity(ctx, p.reg, p.workers)
	if err != nil {
		return err
	}
	p.valid = valid
	return nil
}

func (p *pass) runExpansion(ctx context.Context) error {
	p.cand = ExpandCandidates(p.reg, p.valid)
	return ctx.Err()
}

func (p *pass) runSelfNoise(ctx context.Context) error {
	ants := p.reg.Antennas
	p.selfNoise = make([]float64, len(ants))
	return parallelFor(ctx, len(ants), p.workers, p.chunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a := &ants[i]
			p.selfNoise[i] = antennaSelfNoise(&p.reg.Nodes[a.Owner], a)
		}
	})
}

func (p *pass) runPathLoss(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		d := r3.Norm(r3.Sub(reg.Nodes[c.RxNode[k]].Position, reg.Nodes[c.TxNode[k]].Position))
		c.PathLossDB[k] = PathLossDB(d, reg.Antennas[c.Tx[k]].FrequencyHz)
	})
}

func (p *pass) runTxPointing(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		self := reg.Nodes[c.TxNode[k]].Position
		peer := reg.Nodes[c.RxNode[k]].Position
		c.TxPointingDB[k] = antennaPointingLossDB(&reg.Antennas[c.Tx[k]], self, peer)
	})
}

func (p *pass) runRxPointing(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		self := reg.Nodes[c.RxNode[k]].Position
		peer := reg.Nodes[c.TxNode[k]].Position
		c.RxPointingDB[k] = antennaPointingLossDB(&reg.Antennas[c.Rx[k]], self, peer)
	})
}

func (p *pass) runCoding(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		c.Tier[k] = MatchTier(reg.Antennas[c.Tx[k]].Tier, reg.Antennas[c.Rx[k]].Tier)
	})
}

func (p *pass) runNoise(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		rxNode := &reg.Nodes[c.RxNode[k]]
		txPos := reg.Nodes[c.TxNode[k]].Position
		t := receiverNoiseTemp(reg, rxNode, &reg.Antennas[c.Rx[k]], txPos, p.selfNoise[c.Rx[k]])
		c.NoiseTempK[k] = t
		c.N0DBm[k] = NoiseDensityDBm(t)
	})
}

func (p *pass) runRxPower(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		tx := &reg.Antennas[c.Tx[k]]
		rx := &reg.Antennas[c.Rx[k]]
		c.RxPowerDBm[k] = ReceivedPowerDBm(tx.TxPowerDBm, tx.GainDBi, c.PathLossDB[k], c.TxPointingDB[k], c.RxPointingDB[k], rx.GainDBi)
	})
}

func (p *pass) runMinEb(ctx context.Context) error {
	c := p.cand
	return p.forEach(ctx, func(k int) {
		c.MinEbDBm[k] = MinEbDBm(c.Tier[k], c.N0DBm[k])
	})
}

func (p *pass) runBitRate(ctx context.Context) error {
	c, reg := p.cand, p.reg
	return p.forEach(ctx, func(k int) {
		lim, ok := PairLimits(&reg.Antennas[c.Tx[k]], &reg.Antennas[c.Rx[k]])
		if !ok {
			return
		}
		sel := SelectRate(c.RxPowerDBm[k], c.MinEbDBm[k], c.Tier[k], lim)
		c.MaxBitRate[k] = sel.MaxBitRate
		c.SymbolRate[k] = sel.SymbolRate
		c.ModulationBits[k] = sel.ModulationBits
		c.DataRate[k] = sel.DataRate
		c.MaxDataRate[k] = sel.MaxDataRate
		c.RateSteps[k] = sel.Steps
		c.MaxRateSteps[k] = sel.MaxSteps
	})
}
