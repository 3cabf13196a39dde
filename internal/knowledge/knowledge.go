// Package knowledge serves the reference content (description,
// recommendations, diagnostic tests) attached to each predicted disease.
// A Base is read-only after construction. Lookups for diseases without an
// entry succeed with an empty Entry.
package knowledge

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
)

// Entry is the reference content for one disease.
type Entry struct {
	Name            string   `yaml:"name" json:"name"`
	Description     string   `yaml:"description" json:"description"`
	Recommendations []string `yaml:"recommendations" json:"recommendations"`
	Tests           []string `yaml:"tests" json:"tests"`
}

// Base looks up entries by canonical disease name.
type Base interface {
	Lookup(name string) (Entry, bool)
	Names() []string
}

// Static is an in-memory Base.
type Static struct {
	entries map[string]Entry
	names   []string
}

// NewStatic builds a Static base. Names are normalised; an empty or
// repeated name is an error.
func NewStatic(entries []Entry) (*Static, error) {
	s := &Static{entries: make(map[string]Entry, len(entries))}
	for i, e := range entries {
		e.Name = catalog.Normalize(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("knowledge entry %d has no name", i)
		}
		if _, dup := s.entries[e.Name]; dup {
			return nil, fmt.Errorf("duplicate knowledge entry %q", e.Name)
		}
		e.Recommendations = append([]string(nil), e.Recommendations...)
		e.Tests = append([]string(nil), e.Tests...)
		s.entries[e.Name] = e
		s.names = append(s.names, e.Name)
	}
	return s, nil
}

// Lookup returns the entry for name. The returned slices are copies.
func (s *Static) Lookup(name string) (Entry, bool) {
	e, ok := s.entries[name]
	if !ok {
		return Entry{Name: name}, false
	}
	e.Recommendations = append([]string(nil), e.Recommendations...)
	e.Tests = append([]string(nil), e.Tests...)
	return e, true
}

// Names returns the entry names in load order.
func (s *Static) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of entries.
func (s *Static) Len() int { return len(s.names) }

// Coverage compares a Base with the taxonomy.
type Coverage struct {
	// Missing diseases have no entry and will be served with empty fields.
	Missing []string `json:"missing,omitempty"`
	// Foreign entries name diseases outside the taxonomy and are never used.
	Foreign []string `json:"foreign,omitempty"`
}

// Complete reports whether every disease has an entry and no entry is
// foreign.
func (c Coverage) Complete() bool {
	return len(c.Missing) == 0 && len(c.Foreign) == 0
}

// Check reports how well base covers taxonomy and logs any gaps.
func Check(base Base, taxonomy *catalog.Taxonomy) Coverage {
	var cov Coverage
	for _, name := range taxonomy.Names() {
		if _, ok := base.Lookup(name); !ok {
			cov.Missing = append(cov.Missing, name)
		}
	}
	for _, name := range base.Names() {
		if !taxonomy.Contains(name) {
			cov.Foreign = append(cov.Foreign, name)
		}
	}
	sort.Strings(cov.Foreign)

	logger := slog.Default().With("component", "knowledge")
	if len(cov.Missing) > 0 {
		logger.Warn("diseases without knowledge entries", "count", len(cov.Missing), "diseases", cov.Missing)
	}
	if len(cov.Foreign) > 0 {
		logger.Warn("knowledge entries outside the taxonomy", "count", len(cov.Foreign), "entries", cov.Foreign)
	}
	return cov
}
