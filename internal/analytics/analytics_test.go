package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/kafka"
)

func votes(diseases ...string) []ModelVote {
	models := []string{"decision_tree", "random_forest", "naive_bayes"}
	out := make([]ModelVote, len(diseases))
	for i, d := range diseases {
		out[i] = ModelVote{Model: models[i], Disease: d}
	}
	return out
}

// ---------------------------------------------------------------------------
// Agreement
// ---------------------------------------------------------------------------

func TestClassify(t *testing.T) {
	assert.Equal(t, AgreementUnanimous, Classify([]string{"GERD", "GERD", "GERD"}))
	assert.Equal(t, AgreementMajority, Classify([]string{"GERD", "Acne", "GERD"}))
	assert.Equal(t, AgreementSplit, Classify([]string{"GERD", "Acne", "Allergy"}))
	assert.Equal(t, AgreementSplit, Classify(nil))
}

func TestNewPredictionEvent(t *testing.T) {
	ev := NewPredictionEvent("req-1", []string{"itching"}, nil, votes("Acne", "Acne", "GERD"), false, 1500*time.Microsecond)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, AgreementMajority, ev.Agreement)
	assert.Equal(t, int64(1500), ev.LatencyMicros)
	assert.False(t, ev.Timestamp.IsZero())

	other := NewPredictionEvent("req-1", nil, nil, nil, false, 0)
	assert.NotEqual(t, ev.ID, other.ID)
}

// ---------------------------------------------------------------------------
// Aggregator
// ---------------------------------------------------------------------------

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(NewPredictionEvent("", []string{"itching"}, []string{"zzz"}, votes("Acne", "Acne", "Acne"), false, 2*time.Millisecond))
	agg.Record(NewPredictionEvent("", []string{"itching"}, []string{"zzz", "yyy"}, votes("Acne", "GERD", "Acne"), true, 4*time.Millisecond))
	agg.Record(NewPredictionEvent("", nil, nil, votes("GERD", "Allergy", "Acne"), false, 6*time.Millisecond))

	s := agg.Stats()
	assert.Equal(t, int64(3), s.TotalPredictions)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, int64(1), s.Unanimous)
	assert.Equal(t, int64(1), s.Majority)
	assert.Equal(t, int64(1), s.Split)
	assert.Equal(t, int64(1), s.NoRecognizedSymptoms)
	assert.InDelta(t, 4.0, s.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 4.0, s.P50LatencyMs, 1e-9)

	require.NotEmpty(t, s.TopDiseases)
	assert.Equal(t, NameCount{Name: "Acne", Count: 3}, s.TopDiseases[0])
	assert.Equal(t, NameCount{Name: "GERD", Count: 2}, s.TopDiseases[1])
	assert.Equal(t, []NameCount{{Name: "zzz", Count: 2}, {Name: "yyy", Count: 1}}, s.TopUnknownSymptoms)
	require.Len(t, s.ModelDiseases, 3)
	assert.Equal(t, "decision_tree", s.ModelDiseases[0].Model)
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Record(PredictionEvent{Agreement: AgreementUnanimous, LatencyMicros: int64(i)})
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	assert.Len(t, agg.latencies, maxLatencySamples)
}

func TestAggregatorBoundsDistinctNames(t *testing.T) {
	a := NewAggregator(nil)
	extra := 250
	for i := range maxDistinctNames + extra {
		a.Record(PredictionEvent{
			Unknown: []string{fmt.Sprintf("junk_%d", i)},
			Votes:   votes("GERD", "GERD", "GERD"),
		})
	}

	a.mu.RLock()
	distinct := len(a.unknownCounts)
	other := a.unknownCounts[OtherName]
	a.mu.RUnlock()
	assert.Equal(t, maxDistinctNames+1, distinct)
	assert.Equal(t, int64(extra), other)

	// Known names keep counting after the cap is reached.
	a.Record(PredictionEvent{Unknown: []string{"junk_0"}})
	a.mu.RLock()
	assert.Equal(t, int64(2), a.unknownCounts["junk_0"])
	a.mu.RUnlock()
}

func TestAggregatorTruncatesLongNames(t *testing.T) {
	a := NewAggregator(nil)
	long := strings.Repeat("x", 10*maxNameBytes)
	a.Record(PredictionEvent{Unknown: []string{long, long + "y"}})

	stats := a.Stats()
	require.Len(t, stats.TopUnknownSymptoms, 1)
	assert.Equal(t, strings.Repeat("x", maxNameBytes), stats.TopUnknownSymptoms[0].Name)
	assert.Equal(t, int64(2), stats.TopUnknownSymptoms[0].Count)
}

func TestHandleEventDecodes(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)

	data, err := json.Marshal(NewPredictionEvent("", []string{"cough"}, nil, votes("GERD", "GERD", "GERD"), false, time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("unanimous"), data))
	assert.ErrorIs(t, handle(context.Background(), nil, []byte("{not json")), kafka.ErrMalformed)
	assert.ErrorIs(t, handle(context.Background(), nil, []byte(`{"id":"x","recognized":["cough"]}`)), kafka.ErrMalformed)

	assert.Equal(t, int64(1), agg.Stats().TotalPredictions)
	assert.Equal(t, int64(1), agg.Stats().Unanimous)
}

func TestStartWithoutConsumer(t *testing.T) {
	assert.NoError(t, NewAggregator(nil).Start(context.Background()))
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(NewPredictionEvent("", nil, nil, votes("Acne", "Acne", "Acne"), false, time.Millisecond))

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalPredictions)
}

func TestHandlerLimitsRankings(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(NewPredictionEvent("", nil, []string{"zzz", "yyy"}, votes("Acne", "GERD", "Allergy"), false, time.Millisecond))
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.TopDiseases, 1)
	assert.Len(t, got.TopUnknownSymptoms, 1)
	for _, mc := range got.ModelDiseases {
		assert.Len(t, mc.Top, 1)
	}

	for _, bad := range []string{"0", "-3", "ten"} {
		rec = httptest.NewRecorder()
		h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

// ---------------------------------------------------------------------------
// Collector
// ---------------------------------------------------------------------------

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, WithBatching(100, time.Hour))
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Record(PredictionEvent{Agreement: AgreementSplit})
	}
	c.Close()

	assert.Equal(t, 5, pub.count())
	assert.Equal(t, "split", pub.batches[0][0].Key)
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16, WithBatching(2, time.Hour))
	c.Start(context.Background())

	for i := 0; i < 4; i++ {
		c.Record(PredictionEvent{Agreement: AgreementUnanimous})
	}
	require.Eventually(t, func() bool { return pub.count() == 4 }, time.Second, 5*time.Millisecond)
	c.Close()
}

func TestCollectorDropsWhenFull(t *testing.T) {
	var hooked int
	c := NewCollector(&fakePublisher{}, 1, WithDropHook(func() { hooked++ }))
	c.Record(PredictionEvent{})
	c.Record(PredictionEvent{})
	c.Record(PredictionEvent{})

	assert.Equal(t, int64(2), c.Dropped())
	assert.Equal(t, 2, hooked)
}

func TestCollectorDropsEventsAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16)
	c.Start(context.Background())
	c.Record(PredictionEvent{ID: "before"})
	c.Close()

	assert.NotPanics(t, func() { c.Record(PredictionEvent{ID: "late"}) })
	assert.NotPanics(t, c.Close)
	assert.Equal(t, 1, pub.count())
	assert.Equal(t, int64(1), c.Dropped())
}

func TestCollectorRecordRacesClose(t *testing.T) {
	c := NewCollector(&fakePublisher{}, 1024)
	c.Start(context.Background())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Record(PredictionEvent{})
			}
		}()
	}
	c.Close()
	wg.Wait()
}

func TestFanout(t *testing.T) {
	a, b := NewAggregator(nil), NewAggregator(nil)
	Fanout{a, b}.Record(PredictionEvent{Agreement: AgreementUnanimous})
	assert.Equal(t, int64(1), a.Stats().TotalPredictions)
	assert.Equal(t, int64(1), b.Stats().TotalPredictions)
}
