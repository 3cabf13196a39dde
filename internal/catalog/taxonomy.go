package catalog

import (
	"fmt"
)

// diseases is the canonical label space. A disease's index is its position
// here; trained models emit these indices, so the order is part of the model
// contract.
var diseases = []string{
	"Fungal infection", "Allergy", "GERD", "Chronic cholestasis", "Drug Reaction",
	"Peptic ulcer disease", "AIDS", "Diabetes", "Gastroenteritis", "Bronchial Asthma",
	"Hypertension", "Migraine", "Cervical spondylosis", "Paralysis (brain hemorrhage)", "Jaundice",
	"Malaria", "Chicken pox", "Dengue", "Typhoid", "Hepatitis A",
	"Hepatitis B", "Hepatitis C", "Hepatitis D", "Hepatitis E", "Alcoholic hepatitis",
	"Tuberculosis", "Common Cold", "Pneumonia", "Dimorphic hemorrhoids (piles)", "Heart attack",
	"Varicose veins", "Hypothyroidism", "Hyperthyroidism", "Hypoglycemia", "Osteoarthritis",
	"Arthritis", "(Vertigo) Paroxysmal Positional Vertigo", "Acne", "Urinary tract infection", "Psoriasis",
	"Impetigo",
}

// Taxonomy is the ordered disease label space with a bijective
// name↔index mapping.
type Taxonomy struct {
	names []string
	index map[string]int
}

// NewTaxonomy builds a Taxonomy from names. Names must be non-empty and unique.
func NewTaxonomy(names []string) (*Taxonomy, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("taxonomy is empty")
	}
	t := &Taxonomy{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range t.names {
		if name == "" {
			return nil, fmt.Errorf("taxonomy entry %d is empty", i)
		}
		if prev, dup := t.index[name]; dup {
			return nil, fmt.Errorf("duplicate disease %q at positions %d and %d", name, prev, i)
		}
		t.index[name] = i
	}
	return t, nil
}

// DefaultTaxonomy returns the built-in 41-disease taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy(diseases)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in taxonomy is invalid: %v", err))
	}
	return t
}

// Len returns M, the number of classes.
func (t *Taxonomy) Len() int { return len(t.names) }

// Names returns a copy of the taxonomy in index order.
func (t *Taxonomy) Names() []string {
	return append([]string(nil), t.names...)
}

// Name resolves a class index to its disease name.
func (t *Taxonomy) Name(i int) (string, error) {
	if i < 0 || i >= len(t.names) {
		return "", fmt.Errorf("disease index %d outside [0, %d)", i, len(t.names))
	}
	return t.names[i], nil
}

// Index resolves a disease name to its class index.
func (t *Taxonomy) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Contains reports whether name is a known disease.
func (t *Taxonomy) Contains(name string) bool {
	_, ok := t.index[name]
	return ok
}
