package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	triagerpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage/rpc"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/proto"
	pkgrpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/rpc"
)

// writeCorpora writes a small synthetic corpus pair and a config that
// keeps the forest small.
func writeCorpora(t *testing.T) (cfgPath, train, test string) {
	t.Helper()
	dir := t.TempDir()
	train = filepath.Join(dir, "Training.csv")
	test = filepath.Join(dir, "Testing.csv")
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(train, testutil.CSV(4), 0o644))
	require.NoError(t, os.WriteFile(test, testutil.CSV(1), 0o644))
	require.NoError(t, os.WriteFile(cfgPath, []byte("model:\n  forestTrees: 5\n"), 0o644))
	return cfgPath, train, test
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		configPath, trainPath, testPath, jsonOutput, remoteAddr = "", "", "", false, ""
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"evaluate", "predict", "symptoms", "diseases"} {
		assert.True(t, names[want], want)
	}
}

func TestSymptomsCmd(t *testing.T) {
	out, err := run(t, "symptoms")
	require.NoError(t, err)
	assert.Contains(t, out, "  0  itching\n")
	assert.Contains(t, out, "  1  skin_rash\n")

	out, err = run(t, "symptoms", "--json")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Len(t, names, 131)
}

func TestDiseasesCmd(t *testing.T) {
	out, err := run(t, "diseases")
	require.NoError(t, err)
	assert.Contains(t, out, "  0  Fungal infection\n")
	assert.Contains(t, out, " 40  Impetigo\n")
}

func TestEvaluateCmd(t *testing.T) {
	cfgPath, train, test := writeCorpora(t)
	out, err := run(t, "evaluate", "-c", cfgPath, "--train", train, "--test", test)
	require.NoError(t, err)
	assert.Contains(t, out, "Features: 131  Classes: 41")
	assert.Contains(t, out, "decision_tree")
	assert.Contains(t, out, "random_forest")
	assert.Contains(t, out, "naive_bayes")
	assert.Contains(t, out, "1.0000")

	out, err = run(t, "evaluate", "-c", cfgPath, "--train", train, "--test", test, "--json")
	require.NoError(t, err)
	var info triage.ModelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 41, info.Test.Kept)
}

func TestEvaluateMissingCorpus(t *testing.T) {
	_, err := run(t, "evaluate", "--train", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluate failed")
}

func TestPredictLocal(t *testing.T) {
	cfgPath, train, test := writeCorpora(t)
	out, err := run(t, "predict", "-c", cfgPath, "--train", train, "--test", test, "itching", "skin_rash", "bogus")
	require.NoError(t, err)
	assert.Contains(t, out, "Recognized: itching, skin_rash")
	assert.Contains(t, out, "Ignored:    bogus")
	assert.Contains(t, out, "naive_bayes")
	assert.Contains(t, out, triage.DefaultDisclaimer)
}

func TestPredictWithoutSymptomsFails(t *testing.T) {
	cfgPath, train, test := writeCorpora(t)
	_, err := run(t, "predict", "-c", cfgPath, "--train", train, "--test", test)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no symptoms provided")
}

func TestPredictRemote(t *testing.T) {
	cfgPath, train, test := writeCorpora(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Corpus.TrainPath, cfg.Corpus.TestPath = train, test
	engine, err := triage.Build(context.Background(), cfg, triage.Deps{})
	require.NoError(t, err)

	srv := pkgrpc.NewServer()
	triagerpc.NewService(engine).Register(srv)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	defer srv.Stop()

	out, err := run(t, "predict", "--remote", ln.Addr().String(), "--json", "itching")
	require.NoError(t, err)
	var resp proto.PredictResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Conditions, 3)
	assert.Equal(t, []string{"itching"}, resp.Recognized)
}
