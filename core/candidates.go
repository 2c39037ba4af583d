package core

// Candidates is the struct-of-arrays working set of one pass. Slot k of
// every column describes the directed candidate Tx[k] -> Rx[k]. Each column
// is written by exactly one pipeline stage and is read-only afterwards.
type Candidates struct {
	// Written by expansion.
	TxNode []int32
	RxNode []int32
	Tx     []int32
	Rx     []int32

	Tier []CodingTier // coding

	PathLossDB   []float64 // pathloss
	TxPointingDB []float64 // txpointing
	RxPointingDB []float64 // rxpointing
	RxPowerDBm   []float64 // rxpower
	NoiseTempK   []float64 // noise
	N0DBm        []float64 // noise
	MinEbDBm     []float64 // mineb

	// Written by the bitrate stage.
	MaxBitRate     []float64
	SymbolRate     []float64
	ModulationBits []int
	DataRate       []float64
	MaxDataRate    []float64
	RateSteps      []int
	MaxRateSteps   []int
}

// Len returns the number of candidates.
func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Tx)
}

// allocate sizes every computed column to the expansion result.
func (c *Candidates) allocate() {
	n := len(c.Tx)
	c.Tier = make([]CodingTier, n)
	c.PathLossDB = make([]float64, n)
	c.TxPointingDB = make([]float64, n)
	c.RxPointingDB = make([]float64, n)
	c.RxPowerDBm = make([]float64, n)
	c.NoiseTempK = make([]float64, n)
	c.N0DBm = make([]float64, n)
	c.MinEbDBm = make([]float64, n)
	c.MaxBitRate = make([]float64, n)
	c.SymbolRate = make([]float64, n)
	c.ModulationBits = make([]int, n)
	c.DataRate = make([]float64, n)
	c.MaxDataRate = make([]float64, n)
	c.RateSteps = make([]int, n)
	c.MaxRateSteps = make([]int, n)
}

// Record returns a copy of candidate k as a row, for logging and tests.
func (c *Candidates) Record(k int) CandidateRecord {
	return CandidateRecord{
		TxNode:         c.TxNode[k],
		RxNode:         c.RxNode[k],
		Tx:             c.Tx[k],
		Rx:             c.Rx[k],
		Tier:           c.Tier[k],
		PathLossDB:     c.PathLossDB[k],
		TxPointingDB:   c.TxPointingDB[k],
		RxPointingDB:   c.RxPointingDB[k],
		RxPowerDBm:     c.RxPowerDBm[k],
		NoiseTempK:     c.NoiseTempK[k],
		N0DBm:          c.N0DBm[k],
		MinEbDBm:       c.MinEbDBm[k],
		MaxBitRate:     c.MaxBitRate[k],
		SymbolRate:     c.SymbolRate[k],
		ModulationBits: c.ModulationBits[k],
		DataRate:       c.DataRate[k],
		MaxDataRate:    c.MaxDataRate[k],
		RateSteps:      c.RateSteps[k],
		MaxRateSteps:   c.MaxRateSteps[k],
	}
}

// CandidateRecord is one row of Candidates.
type CandidateRecord struct {
	TxNode, RxNode int32
	Tx, Rx         int32

	Tier           CodingTier
	PathLossDB     float64
	TxPointingDB   float64
	RxPointingDB   float64
	RxPowerDBm     float64
	NoiseTempK     float64
	N0DBm          float64
	MinEbDBm       float64
	MaxBitRate     float64
	SymbolRate     float64
	ModulationBits int
	DataRate       float64
	MaxDataRate    float64
	RateSteps      int
	MaxRateSteps   int
}
