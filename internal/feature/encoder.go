// Package feature turns symptom names into the fixed-length binary vectors
// the classifiers are trained on. The encoder's layout is the vocabulary's
// fingerprint; models record the layout they were trained with and the
// engine refuses to pair an encoder and ensemble whose layouts differ.
package feature

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
)

// Vector is a one-hot-per-symptom feature vector. Every element is 0 or 1.
type Vector []uint8

// Active returns the positions set to 1, in ascending order.
func (v Vector) Active() []int {
	var out []int
	for i, x := range v {
		if x != 0 {
			out = append(out, i)
		}
	}
	return out
}

// IsZero reports whether no position is set.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Resolution splits a request's symptom names into the ones the vocabulary
// knows (deduplicated, in layout order) and the ones it ignores.
type Resolution struct {
	Recognized []string
	Unknown    []string
}

// Encoder maps symptom names onto a Vocabulary's layout.
type Encoder struct {
	vocab  *catalog.Vocabulary
	logger *slog.Logger
}

// NewEncoder creates an Encoder bound to vocab.
func NewEncoder(vocab *catalog.Vocabulary) *Encoder {
	return &Encoder{
		vocab:  vocab,
		logger: slog.Default().With("component", "feature-encoder"),
	}
}

// Len returns the vector length N.
func (e *Encoder) Len() int { return e.vocab.Len() }

// Layout identifies the column order this encoder produces.
func (e *Encoder) Layout() string { return e.vocab.Fingerprint() }

// Encode returns the binary vector for names. Unknown names are ignored and
// duplicates are idempotent; an empty or fully unknown input yields the
// all-zero vector.
func (e *Encoder) Encode(names []string) Vector {
	v := make(Vector, e.vocab.Len())
	for _, name := range names {
		if pos, ok := e.vocab.Position(catalog.Normalize(name)); ok {
			v[pos] = 1
		}
	}
	return v
}

// Resolve classifies names without building a vector. Unknown names are
// logged at info level; they are never an error.
func (e *Encoder) Resolve(names []string) Resolution {
	v := e.Encode(names)
	res := Resolution{}
	seenUnknown := make(map[string]struct{})
	for _, name := range names {
		n := catalog.Normalize(name)
		if e.vocab.Contains(n) {
			continue
		}
		if _, dup := seenUnknown[n]; dup {
			continue
		}
		seenUnknown[n] = struct{}{}
		res.Unknown = append(res.Unknown, n)
		e.logger.Info("symptom not in vocabulary", "symptom", n)
	}
	for _, pos := range v.Active() {
		name, _ := e.vocab.Name(pos)
		res.Recognized = append(res.Recognized, name)
	}
	return res
}
