package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// Names in events come from clients, so every count map is bounded. Once a
// map holds maxDistinctNames keys, new names are counted under OtherName.
const (
	maxDistinctNames = 1000
	maxNameBytes     = 64
	OtherName        = "(other)"
)

// Stats is a point-in-time summary of recorded predictions.
type Stats struct {
	TotalPredictions     int64        `json:"total_predictions"`
	CacheHits            int64        `json:"cache_hits"`
	CacheMisses          int64        `json:"cache_misses"`
	Unanimous            int64        `json:"unanimous"`
	Majority             int64        `json:"majority"`
	Split                int64        `json:"split"`
	NoRecognizedSymptoms int64        `json:"no_recognized_symptoms"`
	AvgLatencyMs         float64      `json:"avg_latency_ms"`
	P50LatencyMs         float64      `json:"p50_latency_ms"`
	P95LatencyMs         float64      `json:"p95_latency_ms"`
	P99LatencyMs         float64      `json:"p99_latency_ms"`
	TopDiseases          []NameCount  `json:"top_diseases"`
	TopUnknownSymptoms   []NameCount  `json:"top_unknown_symptoms"`
	ModelDiseases        []ModelCount `json:"model_diseases,omitempty"`
	PredictionsPerMinute float64      `json:"predictions_per_minute"`
	CapturedAt           time.Time    `json:"captured_at"`
}

// NameCount pairs a name with how often it was seen.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ModelCount is one model's most frequent answers.
type ModelCount struct {
	Model string      `json:"model"`
	Top   []NameCount `json:"top"`
}

// Aggregator keeps running prediction statistics in memory. It can be fed
// directly through Record or from Kafka through HandleEvent.
type Aggregator struct {
	mu             sync.RWMutex
	total          atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	unanimous      atomic.Int64
	majority       atomic.Int64
	split          atomic.Int64
	noRecognized   atomic.Int64
	latencies      []int64
	next           int
	diseaseCounts  map[string]int64
	unknownCounts  map[string]int64
	perModelCounts map[string]map[string]int64
	startTime      time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// recorded in-process only.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:      make([]int64, 0, 1024),
		diseaseCounts:  make(map[string]int64),
		unknownCounts:  make(map[string]int64),
		perModelCounts: make(map[string]map[string]int64),
		startTime:      time.Now(),
		consumer:       consumer,
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the Kafka consumer whose handler feeds this
// aggregator. It must be called before Start.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

// Start consumes events until ctx is cancelled. It returns immediately when
// no consumer is attached.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns a Kafka handler that records PredictionEvents into agg.
// Undecodable messages and events without a single model vote are returned
// as kafka.ErrMalformed so the consumer commits past them.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PredictionEvent](value)
		if err != nil {
			return err
		}
		if len(event.Votes) == 0 {
			return fmt.Errorf("%w: event %s carries no model votes", kafka.ErrMalformed, event.ID)
		}
		agg.Record(event)
		return nil
	}
}

// Record implements Recorder.
func (a *Aggregator) Record(event PredictionEvent) {
	a.total.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	switch event.Agreement {
	case AgreementUnanimous:
		a.unanimous.Add(1)
	case AgreementMajority:
		a.majority.Add(1)
	case AgreementSplit:
		a.split.Add(1)
	}
	if len(event.Recognized) == 0 {
		a.noRecognized.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMicros)
	} else {
		a.latencies[a.next] = event.LatencyMicros
		a.next = (a.next + 1) % maxLatencySamples
	}
	seen := make(map[string]struct{}, len(event.Votes))
	for _, v := range event.Votes {
		if _, dup := seen[v.Disease]; !dup {
			seen[v.Disease] = struct{}{}
			increment(a.diseaseCounts, v.Disease)
		}
		model := boundedKey(a.perModelCounts, v.Model)
		m, ok := a.perModelCounts[model]
		if !ok {
			m = make(map[string]int64)
			a.perModelCounts[model] = m
		}
		increment(m, v.Disease)
	}
	for _, s := range event.Unknown {
		increment(a.unknownCounts, s)
	}
}

func increment(counts map[string]int64, name string) {
	counts[boundedKey(counts, name)]++
}

// boundedKey returns the key name is counted under in m: name itself if it
// is already present, otherwise a truncated copy while m has room, and
// OtherName once m is full.
func boundedKey[V any](m map[string]V, name string) string {
	if _, ok := m[name]; ok {
		return name
	}
	if len(name) > maxNameBytes {
		name = strings.ToValidUTF8(strings.Clone(name[:maxNameBytes]), "")
		if _, ok := m[name]; ok {
			return name
		}
	}
	if len(m) >= maxDistinctNames {
		return OtherName
	}
	return name
}

// DefaultTopN is how many entries Stats keeps in each ranking.
const DefaultTopN = 10

// Stats returns the current summary with DefaultTopN entries per ranking.
func (a *Aggregator) Stats() Stats {
	return a.StatsTop(DefaultTopN)
}

// StatsTop returns the current summary keeping n entries in the disease and
// unknown-symptom rankings and half as many (at least one) per model.
func (a *Aggregator) StatsTop(n int) Stats {
	perModel := max(n/2, 1)
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalPredictions:     a.total.Load(),
		CacheHits:            a.cacheHits.Load(),
		CacheMisses:          a.cacheMisses.Load(),
		Unanimous:            a.unanimous.Load(),
		Majority:             a.majority.Load(),
		Split:                a.split.Load(),
		NoRecognizedSymptoms: a.noRecognized.Load(),
		CapturedAt:           time.Now().UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted)) / 1000
		stats.P50LatencyMs = float64(percentile(sorted, 50)) / 1000
		stats.P95LatencyMs = float64(percentile(sorted, 95)) / 1000
		stats.P99LatencyMs = float64(percentile(sorted, 99)) / 1000
	}
	stats.TopDiseases = topN(a.diseaseCounts, n)
	stats.TopUnknownSymptoms = topN(a.unknownCounts, n)

	models := make([]string, 0, len(a.perModelCounts))
	for m := range a.perModelCounts {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		stats.ModelDiseases = append(stats.ModelDiseases, ModelCount{Model: m, Top: topN(a.perModelCounts[m], perModel)})
	}

	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.PredictionsPerMinute = float64(stats.TotalPredictions) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent names, ties broken alphabetically.
func topN(counts map[string]int64, n int) []NameCount {
	result := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, NameCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
