// Package analytics records what the triage service predicts: how often the
// three models agree, which diseases come up, which symptom names callers
// send that the vocabulary does not know, and how long predictions take.
package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Agreement classifies how many models named the same disease.
type Agreement string

const (
	AgreementUnanimous Agreement = "unanimous"
	AgreementMajority  Agreement = "majority"
	AgreementSplit     Agreement = "split"
)

// Classify returns the agreement level of a set of per-model answers.
func Classify(diseases []string) Agreement {
	counts := make(map[string]int, len(diseases))
	top := 0
	for _, d := range diseases {
		counts[d]++
		top = max(top, counts[d])
	}
	switch {
	case len(diseases) > 0 && top == len(diseases):
		return AgreementUnanimous
	case top*2 > len(diseases):
		return AgreementMajority
	default:
		return AgreementSplit
	}
}

// ModelVote is one model's answer inside a PredictionEvent.
type ModelVote struct {
	Model   string `json:"model"`
	Disease string `json:"disease"`
}

// PredictionEvent describes one completed prediction.
type PredictionEvent struct {
	ID            string      `json:"id"`
	RequestID     string      `json:"request_id,omitempty"`
	Recognized    []string    `json:"recognized"`
	Unknown       []string    `json:"unknown,omitempty"`
	Votes         []ModelVote `json:"votes"`
	Agreement     Agreement   `json:"agreement"`
	CacheHit      bool        `json:"cache_hit"`
	LatencyMicros int64       `json:"latency_us"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewPredictionEvent stamps an event with a fresh id and the current time
// and derives its agreement level from votes.
func NewPredictionEvent(requestID string, recognized, unknown []string, votes []ModelVote, cacheHit bool, latency time.Duration) PredictionEvent {
	diseases := make([]string, len(votes))
	for i, v := range votes {
		diseases[i] = v.Disease
	}
	return PredictionEvent{
		ID:            uuid.NewString(),
		RequestID:     requestID,
		Recognized:    recognized,
		Unknown:       unknown,
		Votes:         votes,
		Agreement:     Classify(diseases),
		CacheHit:      cacheHit,
		LatencyMicros: latency.Microseconds(),
		Timestamp:     time.Now().UTC(),
	}
}

// Recorder accepts prediction events. Implementations must not block the
// caller for long.
type Recorder interface {
	Record(event PredictionEvent)
}

// Fanout delivers each event to every recorder in order.
type Fanout []Recorder

// Record implements Recorder.
func (f Fanout) Record(event PredictionEvent) {
	for _, r := range f {
		r.Record(event)
	}
}
