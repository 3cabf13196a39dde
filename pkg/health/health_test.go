package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(context.Context) error { return errors.New("connection refused") }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("engine", PingCheck(false, up))
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("redis", PingCheck(true, down))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)

	c.Register("postgres", PingCheck(false, down))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestPingCheckNotConfigured(t *testing.T) {
	got := PingCheck(true, nil)(context.Background())
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Equal(t, "not configured", got.Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("kafka", PingCheck(true, down))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("engine", PingCheck(false, down))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestHungCheckIsDegraded(t *testing.T) {
	c := NewChecker(WithCheckTimeout(20 * time.Millisecond))
	c.Register("slow", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ComponentHealth{Status: StatusDown}
	})

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "check timed out", report.Components["slow"].Message)
}

func TestRunReusesReportWithinTTL(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewChecker(WithCacheTTL(time.Second))
	c.now = func() time.Time { return now }

	var calls atomic.Int32
	c.Register("redis", PingCheck(true, func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	c.Run(context.Background())
	c.Run(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(time.Second)
	c.Run(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}
