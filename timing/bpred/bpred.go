// Package bpred provides the branch predictor strategies that can be attached
// to a simulated CPU.
package bpred

import (
	"errors"
	"fmt"
)

// Strategy identifies a branch prediction scheme.
type Strategy string

// Supported strategies.
const (
	// Static always predicts not taken.
	Static Strategy = "static"
	// AlwaysTaken always predicts taken.
	AlwaysTaken Strategy = "always-taken"
	// Bimodal uses a table of 2-bit saturating counters and a BTB.
	Bimodal Strategy = "bimodal"
)

// ErrUnknownStrategy is returned when a strategy identifier is not supported.
var ErrUnknownStrategy = errors.New("unknown branch predictor strategy")

// Strategies lists the supported strategies.
func Strategies() []Strategy {
	return []Strategy{Static, AlwaysTaken, Bimodal}
}

// Valid reports whether s names a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Static, AlwaysTaken, Bimodal:
		return true
	}
	return false
}

// Stats holds statistics for a branch predictor.
type Stats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s Stats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the branch is predicted to be taken.
	Taken bool
	// Target is the predicted target address (if known from BTB).
	Target uint64
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// Predictor is a branch prediction strategy attached to a CPU.
type Predictor interface {
	// Strategy returns the identifier the predictor was built from.
	Strategy() Strategy
	// Predict makes a prediction for the branch at pc.
	Predict(pc uint64) Prediction
	// Update trains the predictor with the actual outcome.
	Update(pc uint64, taken bool, target uint64)
	// Stats returns the counters accumulated since the last reset.
	Stats() Stats
	// ResetStats zeroes the counters but keeps the learned state.
	ResetStats()
}

// New builds a predictor for the given strategy.
func New(s Strategy) (Predictor, error) {
	switch s {
	case Static:
		return &fixedPredictor{strategy: Static}, nil
	case AlwaysTaken:
		return &fixedPredictor{strategy: AlwaysTaken, taken: true}, nil
	case Bimodal:
		return NewBimodal(DefaultBimodalConfig()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// fixedPredictor predicts the same direction for every branch.
type fixedPredictor struct {
	strategy Strategy
	taken    bool
	stats    Stats
}

func (p *fixedPredictor) Strategy() Strategy { return p.strategy }

func (p *fixedPredictor) Predict(uint64) Prediction {
	p.stats.Predictions++
	return Prediction{Taken: p.taken}
}

func (p *fixedPredictor) Update(_ uint64, taken bool, _ uint64) {
	if taken == p.taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}
}

func (p *fixedPredictor) Stats() Stats { return p.stats }

func (p *fixedPredictor) ResetStats() { p.stats = Stats{} }
