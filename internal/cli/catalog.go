package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
)

var symptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "List the symptom vocabulary in feature order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printNames(cmd, catalog.DefaultVocabulary().Names())
	},
}

var diseasesCmd = &cobra.Command{
	Use:   "diseases",
	Short: "List the disease taxonomy in label order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printNames(cmd, catalog.DefaultTaxonomy().Names())
	},
}

func init() {
	rootCmd.AddCommand(symptomsCmd)
	rootCmd.AddCommand(diseasesCmd)
}

func printNames(cmd *cobra.Command, names []string) error {
	if jsonOutput {
		data, err := json.Marshal(names)
		if err != nil {
			return fmt.Errorf("failed to marshal names: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	for i, name := range names {
		cmd.Printf("%3d  %s\n", i, name)
	}
	return nil
}
