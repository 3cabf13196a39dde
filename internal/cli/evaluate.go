package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Train the ensemble and report held-out accuracy",
	Long: `Loads and cleans the training and test corpora, trains the decision tree,
random forest and naive Bayes models, and prints each model's accuracy on
the test corpus together with the cleaning report.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, cleanup, err := buildEngine(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}
	defer cleanup()

	info := engine.Info()
	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	return printInfo(cmd, info)
}

func printInfo(cmd *cobra.Command, info triage.ModelInfo) error {
	cmd.Printf("Features: %d  Classes: %d  Layout: %s\n\n", info.Features, info.Classes, info.Layout)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CORPUS\tROWS\tMISSING LABEL\tUNKNOWN LABEL\tKEPT\tSAMPLED")
	for _, rep := range []struct {
		name string
		rows [5]int
	}{
		{"train", [5]int{info.Train.Rows, info.Train.MissingLabel, info.Train.UnknownLabel, info.Train.Kept, info.Train.Sampled}},
		{"test", [5]int{info.Test.Rows, info.Test.MissingLabel, info.Test.UnknownLabel, info.Test.Kept, info.Test.Sampled}},
	} {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", rep.name, rep.rows[0], rep.rows[1], rep.rows[2], rep.rows[3], rep.rows[4])
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MODEL\tACCURACY\tEVALUATED\tTRAIN TIME")
	for _, s := range info.Models {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%s\n", s.Model, s.Accuracy, s.Evaluated, s.TrainDuration.Round(time.Microsecond))
	}
	return tw.Flush()
}
