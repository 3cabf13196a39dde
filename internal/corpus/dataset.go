package corpus

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

// Dataset is a cleaned corpus: feature rows aligned to Layout and their
// disease indices.
type Dataset struct {
	Layout string
	X      []feature.Vector
	Y      []int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Y) }

// Validate checks the row counts agree and every label is in [0, classes).
func (d *Dataset) Validate(classes int) error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("%w: %d feature rows but %d labels", apperrors.ErrCorpus, len(d.X), len(d.Y))
	}
	for i, y := range d.Y {
		if y < 0 || y >= classes {
			return fmt.Errorf("%w: row %d has label %d outside [0, %d)", apperrors.ErrInvariant, i, y, classes)
		}
	}
	return nil
}

// shuffle permutes rows in place with a PCG stream derived from seed.
func (d *Dataset) shuffle(seed uint64) {
	rng := rand.New(rand.NewPCG(seed, 0))
	rng.Shuffle(len(d.Y), func(i, j int) {
		d.X[i], d.X[j] = d.X[j], d.X[i]
		d.Y[i], d.Y[j] = d.Y[j], d.Y[i]
	})
}

// sample keeps round(fraction*n) randomly chosen rows when n exceeds
// threshold. It returns the number of rows kept.
func (d *Dataset) sample(seed uint64, threshold int, fraction float64) int {
	n := d.Len()
	if n <= threshold {
		return n
	}
	k := int(math.Round(fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	rng := rand.New(rand.NewPCG(seed, 1))
	perm := rng.Perm(n)[:k]

	x := make([]feature.Vector, k)
	y := make([]int, k)
	for i, p := range perm {
		x[i] = d.X[p]
		y[i] = d.Y[p]
	}
	d.X, d.Y = x, y
	return k
}
