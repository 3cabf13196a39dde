package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
)

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	return NewEncoder(catalog.DefaultVocabulary())
}

func TestEncodeLengthAndPositions(t *testing.T) {
	enc := newTestEncoder(t)
	v := enc.Encode([]string{"itching", "skin_rash"})

	require.Len(t, v, 131)
	assert.Equal(t, []int{0, 1}, v.Active())
	assert.False(t, v.IsZero())
}

func TestEncodeIsOrderInvariant(t *testing.T) {
	enc := newTestEncoder(t)
	assert.Equal(t,
		enc.Encode([]string{"cough", "high_fever"}),
		enc.Encode([]string{"high_fever", "cough"}),
	)
}

func TestEncodeDuplicatesAreIdempotent(t *testing.T) {
	enc := newTestEncoder(t)
	assert.Equal(t,
		enc.Encode([]string{"cough"}),
		enc.Encode([]string{"cough", "cough", "cough"}),
	)
}

func TestEncodeUnknownYieldsZeroVector(t *testing.T) {
	enc := newTestEncoder(t)

	for _, input := range [][]string{
		nil,
		{},
		{"not_a_real_symptom"},
		{"not_a_real_symptom", "also_fake"},
	} {
		v := enc.Encode(input)
		assert.Len(t, v, enc.Len())
		assert.True(t, v.IsZero(), "input %v", input)
	}
}

func TestEncodeZeroIffNothingRecognized(t *testing.T) {
	enc := newTestEncoder(t)
	vocab := catalog.DefaultVocabulary()

	for _, name := range vocab.Names() {
		v := enc.Encode([]string{"bogus", name})
		assert.False(t, v.IsZero(), name)
		assert.Len(t, v.Active(), 1, name)
	}
}

func TestEncodeTrimsWhitespace(t *testing.T) {
	enc := newTestEncoder(t)
	assert.Equal(t, enc.Encode([]string{"itching"}), enc.Encode([]string{"  itching "}))
}

func TestResolveSplitsKnownAndUnknown(t *testing.T) {
	enc := newTestEncoder(t)
	res := enc.Resolve([]string{"skin_rash", "zzz", "itching", "zzz", "itching"})

	assert.Equal(t, []string{"itching", "skin_rash"}, res.Recognized)
	assert.Equal(t, []string{"zzz"}, res.Unknown)
}

func TestLayoutMatchesVocabulary(t *testing.T) {
	vocab := catalog.DefaultVocabulary()
	enc := NewEncoder(vocab)
	assert.Equal(t, vocab.Fingerprint(), enc.Layout())
}

func BenchmarkEncode(b *testing.B) {
	enc := NewEncoder(catalog.DefaultVocabulary())
	input := []string{"itching", "skin_rash", "nodal_skin_eruptions", "dischromic_patches", "unknown"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = enc.Encode(input)
	}
}
