package model

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
)

// BernoulliNB is a Naive Bayes classifier over binary features with
// additive (Laplace) smoothing.
type BernoulliNB struct {
	logPrior []float64
	// base[c] is the log-likelihood of the all-zero vector under class c;
	// delta[c][f] is what setting feature f adds to it.
	base  []float64
	delta [][]float64
}

// Kind implements Classifier.
func (nb *BernoulliNB) Kind() Kind { return KindBayes }

// Predict returns the class with the highest joint log-likelihood. Classes
// absent from training have zero prior and never win.
func (nb *BernoulliNB) Predict(v feature.Vector) int {
	best := 0
	bestScore := math.Inf(-1)
	for c := range nb.logPrior {
		score := nb.logPrior[c] + nb.base[c]
		for f, bit := range v {
			if bit != 0 {
				score += nb.delta[c][f]
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func trainBayes(x []feature.Vector, y []int, classes int, alpha float64) *BernoulliNB {
	features := len(x[0])
	classCount := make([]float64, classes)
	featureCount := make([][]float64, classes)
	for c := range featureCount {
		featureCount[c] = make([]float64, features)
	}
	for i, row := range x {
		c := y[i]
		classCount[c]++
		for f, bit := range row {
			if bit != 0 {
				featureCount[c][f]++
			}
		}
	}

	n := float64(len(y))
	nb := &BernoulliNB{
		logPrior: make([]float64, classes),
		base:     make([]float64, classes),
		delta:    make([][]float64, classes),
	}
	for c := 0; c < classes; c++ {
		nb.logPrior[c] = math.Log(classCount[c] / n)
		nb.delta[c] = make([]float64, features)
		denom := classCount[c] + 2*alpha
		for f := 0; f < features; f++ {
			p := (featureCount[c][f] + alpha) / denom
			logP, log1mP := math.Log(p), math.Log(1-p)
			nb.base[c] += log1mP
			nb.delta[c][f] = logP - log1mP
		}
	}
	return nb
}
