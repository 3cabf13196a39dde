// Package catalog holds the two closed, ordered tables the classifiers are
// built on: the Symptom Vocabulary (feature layout) and the Disease Taxonomy
// (label space). Both are immutable after construction and safe for
// concurrent reads.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// symptoms is the canonical feature layout. Position i is column i of every
// feature vector; reordering this list invalidates every trained model.
var symptoms = []string{
	"itching", "skin_rash", "nodal_skin_eruptions", "continuous_sneezing", "shivering",
	"chills", "joint_pain", "stomach_pain", "acidity", "ulcers_on_tongue",
	"muscle_wasting", "vomiting", "burning_micturition", "spotting_urination", "fatigue",
	"weight_gain", "anxiety", "cold_hands_and_feets", "mood_swings", "weight_loss",
	"restlessness", "lethargy", "patches_in_throat", "irregular_sugar_level", "cough",
	"high_fever", "sunken_eyes", "breathlessness", "sweating", "dehydration",
	"indigestion", "headache", "yellowish_skin", "dark_urine", "nausea",
	"loss_of_appetite", "pain_behind_the_eyes", "back_pain", "constipation", "abdominal_pain",
	"diarrhoea", "mild_fever", "yellow_urine", "yellowing_of_eyes", "acute_liver_failure",
	"fluid_overload", "swelling_of_stomach", "swelled_lymph_nodes", "malaise", "blurred_and_distorted_vision",
	"phlegm", "throat_irritation", "redness_of_eyes", "sinus_pressure", "runny_nose",
	"congestion", "chest_pain", "weakness_in_limbs", "fast_heart_rate", "pain_during_bowel_movements",
	"pain_in_anal_region", "bloody_stool", "irritation_in_anus", "neck_pain", "dizziness",
	"cramps", "bruising", "obesity", "swollen_legs", "swollen_blood_vessels",
	"puffy_face_and_eyes", "enlarged_thyroid", "brittle_nails", "swollen_extremeties", "excessive_hunger",
	"extra_marital_contacts", "drying_and_tingling_lips", "slurred_speech", "knee_pain", "hip_joint_pain",
	"muscle_weakness", "stiff_neck", "swelling_joints", "movement_stiffness", "spinning_movements",
	"loss_of_balance", "unsteadiness", "weakness_of_one_body_side", "loss_of_smell", "bladder_discomfort",
	"foul_smell_of_urine", "continuous_feel_of_urine", "passage_of_gases", "internal_itching", "toxic_look_(typhos)",
	"depression", "irritability", "muscle_pain", "altered_sensorium", "red_spots_over_body",
	"belly_pain", "abnormal_menstruation", "dischromic_patches", "watering_from_eyes", "increased_appetite",
	"polyuria", "family_history", "mucoid_sputum", "rusty_sputum", "lack_of_concentration",
	"visual_disturbances", "receiving_blood_transfusion", "receiving_unsterile_injections", "coma", "stomach_bleeding",
	"distention_of_abdomen", "history_of_alcohol_consumption", "blood_in_sputum", "prominent_veins_on_calf", "palpitations",
	"painful_walking", "pus_filled_pimples", "blackheads", "scurring", "skin_peeling",
	"silver_like_dusting", "small_dents_in_nails", "inflammatory_nails", "blister", "red_sore_around_nose",
	"yellow_crust_ooze",
}

// Vocabulary is an ordered, closed set of symptom identifiers with a
// precomputed name→position index.
type Vocabulary struct {
	names       []string
	index       map[string]int
	fingerprint string
}

// NewVocabulary builds a Vocabulary from names. Names must be non-empty and
// unique; their order becomes the feature layout.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	v := &Vocabulary{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range v.names {
		if name == "" {
			return nil, fmt.Errorf("vocabulary entry %d is empty", i)
		}
		if prev, dup := v.index[name]; dup {
			return nil, fmt.Errorf("duplicate symptom %q at positions %d and %d", name, prev, i)
		}
		v.index[name] = i
	}
	v.fingerprint = fingerprint(v.names)
	return v, nil
}

// DefaultVocabulary returns the built-in 131-symptom vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(symptoms)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in vocabulary is invalid: %v", err))
	}
	return v
}

// Len returns N, the feature vector length.
func (v *Vocabulary) Len() int { return len(v.names) }

// Names returns a copy of the vocabulary in layout order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Name returns the symptom at position i.
func (v *Vocabulary) Name(i int) (string, bool) {
	if i < 0 || i >= len(v.names) {
		return "", false
	}
	return v.names[i], true
}

// Position returns the column of name in the layout.
func (v *Vocabulary) Position(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}

// Contains reports whether name is a known symptom.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// Fingerprint identifies the feature layout. Two vocabularies with the same
// names in the same order share a fingerprint.
func (v *Vocabulary) Fingerprint() string { return v.fingerprint }

func fingerprint(names []string) string {
	sum := sha256.Sum256([]byte(strings.Join(names, "\n")))
	return hex.EncodeToString(sum[:8])
}
