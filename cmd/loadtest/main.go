// Command loadtest drives the triage service with rotating symptom sets and
// reports throughput, latency percentiles, cache hit ratio and how often
// the three models agreed.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:5000 -concurrency 20 -duration 1m
//	go run ./cmd/loadtest -rpc localhost:9100 -random 200
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/proto"
	pkgrpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/rpc"
)

// curated sets cover one recognisable presentation per body system plus an
// input the vocabulary does not know.
var curated = [][]string{
	{"itching", "skin_rash", "nodal_skin_eruptions"},
	{"continuous_sneezing", "shivering", "chills", "watering_from_eyes"},
	{"stomach_pain", "acidity", "ulcers_on_tongue", "vomiting", "cough", "chest_pain"},
	{"high_fever", "headache", "nausea", "muscle_pain"},
	{"fatigue", "weight_loss", "restlessness", "lethargy", "irregular_sugar_level"},
	{"joint_pain", "vomiting", "fatigue", "high_fever", "yellowish_skin", "dark_urine"},
	{"chest_pain", "breathlessness", "sweating", "vomiting"},
	{"headache", "chest_pain", "dizziness", "loss_of_balance", "lack_of_concentration"},
	{"skin_rash", "pus_filled_pimples", "blackheads", "scurring"},
	{"burning_micturition", "bladder_discomfort", "foul_smell_of_urine", "continuous_feel_of_urine"},
	{"cough", "high_fever", "breathlessness", "phlegm", "chest_pain"},
	{"not_a_real_symptom"},
}

// outcome is what one request observed.
type outcome struct {
	latency   time.Duration
	status    int
	cacheHit  bool
	agreement string
	err       error
}

// predictor sends one prediction request.
type predictor interface {
	predict(ctx context.Context, symptoms []string) outcome
}

type httpPredictor struct {
	client *http.Client
	url    string
}

func (p *httpPredictor) predict(ctx context.Context, symptoms []string) outcome {
	payload, err := json.Marshal(map[string][]string{"symptoms": symptoms})
	if err != nil {
		return outcome{err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return outcome{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return outcome{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()
	var body struct {
		CacheHit  bool   `json:"cacheHit"`
		Agreement string `json:"agreement"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	_, _ = io.Copy(io.Discard, resp.Body)
	return outcome{
		latency:   time.Since(start),
		status:    resp.StatusCode,
		cacheHit:  body.CacheHit,
		agreement: body.Agreement,
	}
}

// rpcPredictor holds one connection per worker; rpc clients are not shared.
type rpcPredictor struct {
	client *pkgrpc.Client
}

func (p *rpcPredictor) predict(ctx context.Context, symptoms []string) outcome {
	start := time.Now()
	var resp proto.PredictResponse
	err := p.client.Call(ctx, proto.MethodPredict, proto.PredictRequest{Symptoms: symptoms}, &resp)
	o := outcome{latency: time.Since(start), cacheHit: resp.CacheHit, agreement: resp.Agreement}
	switch {
	case err == nil:
		o.status = http.StatusOK
	case ctx.Err() != nil:
		o.err = err
	default:
		o.status = http.StatusBadRequest
		var remote *pkgrpc.RemoteError
		if !errors.As(err, &remote) {
			o.err = err
		}
	}
	return o
}

// report accumulates outcomes from every worker.
type report struct {
	mu         sync.Mutex
	total      int
	success    int
	errors     int
	cacheHits  int
	latencies  []time.Duration
	statuses   map[int]int
	agreements map[string]int
}

func newReport() *report {
	return &report{
		latencies:  make([]time.Duration, 0, 100000),
		statuses:   make(map[int]int),
		agreements: make(map[string]int),
	}
}

func (r *report) add(o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if o.err != nil {
		r.errors++
		return
	}
	r.latencies = append(r.latencies, o.latency)
	r.statuses[o.status]++
	if o.status < 200 || o.status >= 300 {
		r.errors++
		return
	}
	r.success++
	if o.cacheHit {
		r.cacheHits++
	}
	if o.agreement != "" {
		r.agreements[o.agreement]++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "base URL of the triage HTTP API")
	rpcAddr := flag.String("rpc", "", "host:port of the RPC endpoint; when set, requests go over RPC instead of HTTP")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	random := flag.Int("random", 0, "add this many random symptom sets drawn from the vocabulary")
	seed := flag.Uint64("seed", 1, "seed for -random")
	flag.Parse()

	sets := append([][]string(nil), curated...)
	sets = append(sets, randomSets(*random, *seed)...)

	target := *baseURL
	if *rpcAddr != "" {
		target = "rpc://" + *rpcAddr
	}
	fmt.Println("=== Triage Load Test ===")
	fmt.Printf("Target:      %s\n", target)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Requests:    %d unique symptom sets\n", len(sets))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	rep := newReport()
	if err := run(ctx, *concurrency, sets, rep, newPredictorFactory(*baseURL, *rpcAddr, *concurrency)); err != nil {
		fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	if !rep.print(*duration) {
		os.Exit(1)
	}
}

func newPredictorFactory(baseURL, rpcAddr string, concurrency int) func(ctx context.Context) (predictor, func(), error) {
	if rpcAddr != "" {
		return func(ctx context.Context) (predictor, func(), error) {
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			c, err := pkgrpc.Dial(dialCtx, rpcAddr)
			if err != nil {
				return nil, nil, err
			}
			return &rpcPredictor{client: c}, func() { c.Close() }, nil
		}
	}
	shared := &httpPredictor{
		url: baseURL + "/api/v1/predict",
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        concurrency * 2,
				MaxIdleConnsPerHost: concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	return func(context.Context) (predictor, func(), error) { return shared, func() {}, nil }
}

func run(ctx context.Context, workers int, sets [][]string, rep *report, factory func(context.Context) (predictor, func(), error)) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			p, closeFn, err := factory(gctx)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			defer closeFn()
			for i := w; gctx.Err() == nil; i++ {
				o := p.predict(gctx, sets[i%len(sets)])
				if gctx.Err() != nil {
					return nil
				}
				rep.add(o)
			}
			return nil
		})
	}
	return g.Wait()
}

// randomSets draws n sets of two to six distinct vocabulary symptoms.
func randomSets(n int, seed uint64) [][]string {
	names := catalog.DefaultVocabulary().Names()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([][]string, 0, n)
	for range n {
		k := 2 + rng.IntN(5)
		perm := rng.Perm(len(names))[:k]
		set := make([]string, k)
		for i, idx := range perm {
			set[i] = names[idx]
		}
		out = append(out, set)
	}
	return out
}

// print writes the report and returns false when nothing completed.
func (r *report) print(duration time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", r.total)
	fmt.Printf("Successful:      %d\n", r.success)
	fmt.Printf("Errors:          %d\n", r.errors)
	if r.total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(r.errors)/float64(r.total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(r.total)/duration.Seconds())
	}
	if r.success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(r.cacheHits)/float64(r.success)*100)
		fmt.Println()
		fmt.Println("=== Model Agreement ===")
		for _, a := range []string{"unanimous", "majority", "split"} {
			fmt.Printf("  %-10s %6d (%.1f%%)\n", a, r.agreements[a], float64(r.agreements[a])/float64(r.success)*100)
		}
	}

	if len(r.latencies) > 0 {
		lat := slices.Clone(r.latencies)
		slices.Sort(lat)
		var sum time.Duration
		for _, l := range lat {
			sum += l
		}
		avg := sum / time.Duration(len(lat))
		var sq float64
		for _, l := range lat {
			d := float64(l - avg)
			sq += d * d
		}

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", lat[0])
		fmt.Printf("Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%-5.0f %s\n", p, percentile(lat, p))
		}
		fmt.Printf("Max:    %s\n", lat[len(lat)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(lat)))))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(r.statuses))
	for code := range r.statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, r.statuses[code])
	}

	if r.total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
