package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
)

func TestRandomSetsAreDeterministicAndKnown(t *testing.T) {
	a := randomSets(20, 7)
	assert.Equal(t, a, randomSets(20, 7))
	assert.NotEqual(t, a, randomSets(20, 8))

	vocab := catalog.DefaultVocabulary()
	for _, set := range a {
		assert.GreaterOrEqual(t, len(set), 2)
		assert.LessOrEqual(t, len(set), 6)
		seen := map[string]bool{}
		for _, s := range set {
			assert.True(t, vocab.Contains(s), s)
			assert.False(t, seen[s], "duplicate %s", s)
			seen[s] = true
		}
	}
}

func TestReportCountsOutcomes(t *testing.T) {
	r := newReport()
	r.add(outcome{status: 200, cacheHit: true, agreement: "unanimous", latency: time.Millisecond})
	r.add(outcome{status: 200, agreement: "split", latency: 2 * time.Millisecond})
	r.add(outcome{status: 400, latency: time.Millisecond})
	r.add(outcome{err: errors.New("connection refused")})

	assert.Equal(t, 4, r.total)
	assert.Equal(t, 2, r.success)
	assert.Equal(t, 2, r.errors)
	assert.Equal(t, 1, r.cacheHits)
	assert.Equal(t, map[int]int{200: 2, 400: 1}, r.statuses)
	assert.Equal(t, 1, r.agreements["unanimous"])
	assert.Len(t, r.latencies, 3)
}

type countingPredictor struct{ calls atomic.Int64 }

func (p *countingPredictor) predict(context.Context, []string) outcome {
	p.calls.Add(1)
	time.Sleep(time.Millisecond)
	return outcome{status: 200, agreement: "majority"}
}

func TestRunStopsAtDeadline(t *testing.T) {
	p := &countingPredictor{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	r := newReport()
	err := run(ctx, 3, curated, r, func(context.Context) (predictor, func(), error) {
		return p, func() {}, nil
	})
	require.NoError(t, err)
	assert.Positive(t, r.total)
	assert.LessOrEqual(t, int64(r.total), p.calls.Load())
	assert.Equal(t, r.total, r.agreements["majority"])
}

func TestPercentile(t *testing.T) {
	lat := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(lat, 50))
	assert.Equal(t, time.Duration(10), percentile(lat, 99))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}
