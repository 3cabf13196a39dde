// Package triage turns a set of reported symptoms into candidate conditions.
// The Engine encodes the symptoms, asks each model of the ensemble for a
// disease and the Aggregator joins every answer with its knowledge-base
// entry. All state is built once at startup and read-only afterwards.
package triage

import (
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/analytics"
)

// DefaultDisclaimer marks every diagnosis as non-authoritative.
const DefaultDisclaimer = "This is an AI-assisted diagnosis and should not replace professional medical advice."

// Candidate is one possible condition, projected from a disease and its
// knowledge-base entry.
type Candidate struct {
	Name            string   `json:"name"`
	Models          []string `json:"models"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	Tests           []string `json:"tests"`
	Urgency         string   `json:"urgency"`
}

// Diagnosis is the result of one prediction.
type Diagnosis struct {
	Recognized []string            `json:"recognized"`
	Unknown    []string            `json:"unknown,omitempty"`
	Candidates []Candidate         `json:"possibleConditions"`
	Agreement  analytics.Agreement `json:"agreement"`
	CacheHit   bool                `json:"cacheHit"`
	Disclaimer string              `json:"disclaimer"`
}

// votes flattens candidates back into one vote per producing model.
func votes(candidates []Candidate) []analytics.ModelVote {
	var out []analytics.ModelVote
	for _, c := range candidates {
		for _, m := range c.Models {
			out = append(out, analytics.ModelVote{Model: m, Disease: c.Name})
		}
	}
	return out
}
