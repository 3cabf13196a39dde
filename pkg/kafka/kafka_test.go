package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vote struct {
	Model   string `json:"model"`
	Disease string `json:"disease"`
}

func TestEncodeMessages(t *testing.T) {
	msgs, err := encodeMessages([]Event{
		{Key: "unanimous", Value: vote{Model: "naive_bayes", Disease: "GERD"}},
		{Key: "split", Value: map[string]int{"n": 1}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("unanimous"), msgs[0].Key)
	assert.JSONEq(t, `{"model":"naive_bayes","disease":"GERD"}`, string(msgs[0].Value))

	_, err = encodeMessages([]Event{{Key: "bad", Value: make(chan int)}})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[vote]([]byte(`{"model":"decision_tree","disease":"Acne"}`))
	require.NoError(t, err)
	assert.Equal(t, vote{Model: "decision_tree", Disease: "Acne"}, got)

	_, err = DecodeJSON[vote]([]byte(`not json`))
	assert.ErrorContains(t, err, "decoding kafka message")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHandleClassifiesHandlerErrors(t *testing.T) {
	var seen []Outcome
	c := &Consumer{logger: slog.Default(), onOutcome: func(o Outcome) { seen = append(seen, o) }}

	cases := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeProcessed},
		{fmt.Errorf("bad payload: %w", ErrMalformed), OutcomeSkipped},
		{errors.New("database down"), OutcomeFailed},
	}
	for _, tc := range cases {
		c.handler = func(context.Context, []byte, []byte) error { return tc.err }
		got := c.handle(context.Background(), segkafka.Message{Offset: 7})
		assert.Equal(t, tc.want, got)
		c.record(got)
	}

	assert.Equal(t, []Outcome{OutcomeProcessed, OutcomeSkipped, OutcomeFailed}, seen)
	assert.Equal(t, int64(1), c.processed.Load())
	assert.Equal(t, int64(1), c.skipped.Load())
	assert.Equal(t, int64(1), c.failed.Load())
}
