package triage

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
)

const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// UrgencyPolicy assigns an urgency tag to a disease. The models do not
// estimate urgency; a policy is a fixed lookup, not a judgement.
type UrgencyPolicy interface {
	Urgency(disease string) string
}

// ConstantUrgency tags every disease with the same level.
type ConstantUrgency string

// Urgency implements UrgencyPolicy.
func (c ConstantUrgency) Urgency(string) string { return string(c) }

// TableUrgency tags diseases from fixed lists and falls back to Default.
type TableUrgency struct {
	Levels  map[string]string
	Default string
}

// Urgency implements UrgencyPolicy.
func (t TableUrgency) Urgency(disease string) string {
	if level, ok := t.Levels[disease]; ok {
		return level
	}
	return t.Default
}

var (
	highUrgency = []string{
		"Heart attack", "Paralysis (brain hemorrhage)", "AIDS", "Hepatitis B", "Hepatitis C",
		"Hepatitis D", "Hepatitis E", "Alcoholic hepatitis", "Tuberculosis", "Pneumonia",
	}
	mediumUrgency = []string{
		"Diabetes", "Hypertension", "Migraine", "Cervical spondylosis", "Jaundice", "Malaria",
		"Dengue", "Typhoid", "Hepatitis A", "Bronchial Asthma", "GERD", "Gastroenteritis",
		"Urinary tract infection", "Psoriasis", "Peptic ulcer disease", "Arthritis", "Osteoarthritis",
	}
)

// DefaultUrgencyTable grades the built-in taxonomy into high, medium and
// low. Diseases not listed are low.
func DefaultUrgencyTable() TableUrgency {
	levels := make(map[string]string, len(highUrgency)+len(mediumUrgency))
	for _, d := range highUrgency {
		levels[d] = UrgencyHigh
	}
	for _, d := range mediumUrgency {
		levels[d] = UrgencyMedium
	}
	return TableUrgency{Levels: levels, Default: UrgencyLow}
}

// NewUrgencyPolicy builds the policy named in cfg.
func NewUrgencyPolicy(cfg config.TriageConfig) (UrgencyPolicy, error) {
	switch cfg.UrgencyPolicy {
	case "", "constant":
		level := cfg.DefaultUrgency
		if level == "" {
			level = UrgencyMedium
		}
		return ConstantUrgency(level), nil
	case "table":
		return DefaultUrgencyTable(), nil
	default:
		return nil, fmt.Errorf("unknown urgency policy %q", cfg.UrgencyPolicy)
	}
}
