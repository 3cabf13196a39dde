package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/proto"
	pkgrpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/rpc"
)

func newClient(t *testing.T) *pkgrpc.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Model.ForestTrees = 5
	x, y := testutil.Dataset(2)
	ds := &corpus.Dataset{Layout: catalog.DefaultVocabulary().Fingerprint(), X: x, Y: y}
	engine, err := triage.BuildFromDatasets(context.Background(), cfg, triage.Deps{}, ds, nil, corpus.Report{}, corpus.Report{})
	require.NoError(t, err)

	srv := pkgrpc.NewServer()
	NewService(engine).Register(srv)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := pkgrpc.Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPredictOverRPC(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var resp proto.PredictResponse
	require.NoError(t, c.Call(ctx, proto.MethodPredict, proto.PredictRequest{Symptoms: []string{"itching", "skin_rash", "zzz"}}, &resp))
	assert.Len(t, resp.Conditions, 3)
	assert.Equal(t, []string{"itching", "skin_rash"}, resp.Recognized)
	assert.Equal(t, []string{"zzz"}, resp.Unknown)
	assert.Equal(t, triage.DefaultDisclaimer, resp.Disclaimer)
}

func TestPredictRejectsEmptyList(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Call(ctx, proto.MethodPredict, proto.PredictRequest{}, nil)
	var remote *pkgrpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "no symptoms provided", remote.Message)
}

func TestCatalogListings(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var symptoms, diseases proto.ListResponse
	require.NoError(t, c.Call(ctx, proto.MethodSymptoms, nil, &symptoms))
	require.NoError(t, c.Call(ctx, proto.MethodDiseases, nil, &diseases))
	assert.Equal(t, catalog.DefaultVocabulary().Names(), symptoms.Names)
	assert.Len(t, diseases.Names, 41)

	var health proto.HealthCheckResponse
	require.NoError(t, c.Call(ctx, proto.MethodHealth, nil, &health))
	assert.Equal(t, "SERVING", health.Status)
}
