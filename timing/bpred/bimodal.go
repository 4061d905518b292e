package bpred

// BimodalConfig holds configuration for the bimodal predictor.
type BimodalConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32
}

// DefaultBimodalConfig returns a default configuration.
func DefaultBimodalConfig() BimodalConfig {
	return BimodalConfig{
		BHTSize: 1024,
		BTBSize: 256,
	}
}

// BimodalPredictor implements a 2-bit saturating counter predictor with a
// Branch Target Buffer.
type BimodalPredictor struct {
	// 0=Strongly Not Taken, 1=Weakly Not Taken,
	// 2=Weakly Taken, 3=Strongly Taken
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats Stats
}

type btbEntry struct {
	pc     uint64
	target uint64
}

// NewBimodal creates a bimodal predictor. Zero sizes fall back to defaults.
func NewBimodal(config BimodalConfig) *BimodalPredictor {
	bhtSize := config.BHTSize
	btbSize := config.BTBSize
	if bhtSize == 0 {
		bhtSize = 1024
	}
	if btbSize == 0 {
		btbSize = 256
	}

	bp := &BimodalPredictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtSize:  bhtSize,
		btbSize:  btbSize,
	}

	// Weakly taken.
	for i := range bp.bht {
		bp.bht[i] = 2
	}

	return bp
}

// Strategy returns Bimodal.
func (bp *BimodalPredictor) Strategy() Strategy { return Bimodal }

func (bp *BimodalPredictor) bhtIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(bp.bhtSize-1))
}

func (bp *BimodalPredictor) btbIndex(pc uint64) uint32 {
	return uint32((pc >> 2) & uint64(bp.btbSize-1))
}

// Predict makes a branch prediction for the given PC.
func (bp *BimodalPredictor) Predict(pc uint64) Prediction {
	pred := Prediction{}
	pred.Taken = bp.bht[bp.bhtIndex(pc)] >= 2

	btbIdx := bp.btbIndex(pc)
	if bp.btbValid[btbIdx] && bp.btb[btbIdx].pc == pc {
		pred.Target = bp.btb[btbIdx].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update updates the predictor with the actual branch outcome.
func (bp *BimodalPredictor) Update(pc uint64, taken bool, target uint64) {
	bhtIdx := bp.bhtIndex(pc)
	counter := bp.bht[bhtIdx]

	if (counter >= 2) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			bp.bht[bhtIdx] = counter + 1
		}
	} else if counter > 0 {
		bp.bht[bhtIdx] = counter - 1
	}

	if taken {
		btbIdx := bp.btbIndex(pc)
		bp.btb[btbIdx] = btbEntry{pc: pc, target: target}
		bp.btbValid[btbIdx] = true
	}
}

// Stats returns the branch predictor statistics.
func (bp *BimodalPredictor) Stats() Stats {
	return bp.stats
}

// ResetStats clears the statistics. Table contents are kept.
func (bp *BimodalPredictor) ResetStats() {
	bp.stats = Stats{}
}
