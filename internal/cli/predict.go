package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	triagerpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage/rpc"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/proto"
	pkgrpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/rpc"
)

var (
	remoteAddr    string
	remoteTimeout time.Duration
)

var predictCmd = &cobra.Command{
	Use:   "predict [symptom...]",
	Short: "Predict candidate conditions for a set of symptoms",
	Long: `Runs the three models on the given symptoms and prints one candidate
condition per model. By default the models are trained locally from the
configured corpora; with --remote the request goes to a running service's
RPC endpoint instead.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&remoteAddr, "remote", "", "host:port of a running service's RPC endpoint")
	predictCmd.Flags().DurationVar(&remoteTimeout, "timeout", 10*time.Second, "timeout for remote calls")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	var (
		resp proto.PredictResponse
		err  error
	)
	if remoteAddr != "" {
		resp, err = predictRemote(cmd.Context(), args)
	} else {
		resp, err = predictLocal(cmd.Context(), args)
	}
	if err != nil {
		return fmt.Errorf("predict failed: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printPrediction(cmd, resp)
	return nil
}

func predictLocal(ctx context.Context, symptoms []string) (proto.PredictResponse, error) {
	cfg, err := loadConfig()
	if err != nil {
		return proto.PredictResponse{}, err
	}
	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return proto.PredictResponse{}, err
	}
	defer cleanup()

	d, err := engine.Diagnose(ctx, symptoms)
	if err != nil {
		return proto.PredictResponse{}, err
	}
	return triagerpc.ToProto(d), nil
}

func predictRemote(ctx context.Context, symptoms []string) (proto.PredictResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	client, err := pkgrpc.Dial(ctx, remoteAddr)
	if err != nil {
		return proto.PredictResponse{}, err
	}
	defer client.Close()

	var resp proto.PredictResponse
	err = client.Call(ctx, proto.MethodPredict, proto.PredictRequest{Symptoms: symptoms}, &resp)
	return resp, err
}

func printPrediction(cmd *cobra.Command, resp proto.PredictResponse) {
	cmd.Printf("Recognized: %s\n", listOrNone(resp.Recognized))
	if len(resp.Unknown) > 0 {
		cmd.Printf("Ignored:    %s\n", strings.Join(resp.Unknown, ", "))
	}
	cmd.Printf("Agreement:  %s\n\n", resp.Agreement)

	for i, c := range resp.Conditions {
		cmd.Printf("%d. %s [%s] (urgency: %s)\n", i+1, c.Name, strings.Join(c.Models, ", "), c.Urgency)
		if c.Description != "" {
			cmd.Printf("   %s\n", c.Description)
		}
		if len(c.Recommendations) > 0 {
			cmd.Printf("   Recommendations: %s\n", strings.Join(c.Recommendations, "; "))
		}
		if len(c.Tests) > 0 {
			cmd.Printf("   Tests: %s\n", strings.Join(c.Tests, "; "))
		}
	}
	cmd.Printf("\n%s\n", resp.Disclaimer)
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
