// Package testutil builds small deterministic corpora for tests. Every
// disease in the default taxonomy owns a disjoint signature of three
// consecutive symptoms; disease 0 ("Fungal infection") owns itching,
// skin_rash and nodal_skin_eruptions.
package testutil

import (
	"bytes"
	"encoding/csv"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
)

const signatureSize = 3

// Signature returns the symptom names characteristic of disease d.
func Signature(d int) []string {
	vocab := catalog.DefaultVocabulary()
	out := make([]string, 0, signatureSize)
	for k := 0; k < signatureSize; k++ {
		name, _ := vocab.Name((signatureSize*d + k) % vocab.Len())
		out = append(out, name)
	}
	return out
}

// rowSymptoms returns the symptoms present in row r of disease d. Every
// fourth row carries the full signature; the others drop one member.
func rowSymptoms(d, r int) []string {
	sig := Signature(d)
	drop := r % (signatureSize + 1)
	if drop == signatureSize {
		return sig
	}
	out := make([]string, 0, signatureSize-1)
	for k, s := range sig {
		if k != drop {
			out = append(out, s)
		}
	}
	return out
}

// Dataset returns rowsPerDisease encoded rows for every disease in the
// default taxonomy, grouped by disease.
func Dataset(rowsPerDisease int) ([]feature.Vector, []int) {
	enc := feature.NewEncoder(catalog.DefaultVocabulary())
	m := catalog.DefaultTaxonomy().Len()
	x := make([]feature.Vector, 0, m*rowsPerDisease)
	y := make([]int, 0, m*rowsPerDisease)
	for d := 0; d < m; d++ {
		for r := 0; r < rowsPerDisease; r++ {
			x = append(x, enc.Encode(rowSymptoms(d, r)))
			y = append(y, d)
		}
	}
	return x, y
}

// CSV renders the same corpus as Dataset in the on-disk training format:
// one column per vocabulary symptom followed by "prognosis". Extra lets a
// test append raw rows (already in header order) after the generated ones.
func CSV(rowsPerDisease int, extra ...[]string) []byte {
	vocab := catalog.DefaultVocabulary()
	tax := catalog.DefaultTaxonomy()
	x, y := Dataset(rowsPerDisease)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(append(vocab.Names(), "prognosis"))
	for i, vec := range x {
		rec := make([]string, 0, len(vec)+1)
		for _, bit := range vec {
			if bit == 1 {
				rec = append(rec, "1")
			} else {
				rec = append(rec, "0")
			}
		}
		name, _ := tax.Name(y[i])
		rec = append(rec, name)
		_ = w.Write(rec)
	}
	for _, rec := range extra {
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}

// Row builds a raw CSV record with the named symptoms set and label in the
// prognosis column.
func Row(label string, symptoms ...string) []string {
	vocab := catalog.DefaultVocabulary()
	rec := make([]string, vocab.Len()+1)
	for i := range rec[:vocab.Len()] {
		rec[i] = "0"
	}
	for _, s := range symptoms {
		if pos, ok := vocab.Position(s); ok {
			rec[pos] = "1"
		}
	}
	rec[vocab.Len()] = label
	return rec
}
