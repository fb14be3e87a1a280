package service

import (
	"math/rand/v2"
)

// Sampler decides whether a completed trace is forwarded downstream.
type Sampler interface {
	Sample() bool
}

type AlwaysSampler struct{}

func (AlwaysSampler) Sample() bool { return true }

// PercentSampler forwards a trace with probability percent/100.
type PercentSampler struct {
	percent float64
	rand    *rand.Rand
}

// NewSampler returns an AlwaysSampler when percent is outside (0, 100).
func NewSampler(percent float64, source rand.Source) Sampler {
	if percent <= 0 || percent >= 100 {
		return AlwaysSampler{}
	}
	return &PercentSampler{percent: percent, rand: rand.New(source)}
}

func (s *PercentSampler) Sample() bool {
	return s.rand.Float64()*100 < s.percent
}
