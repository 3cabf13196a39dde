// Package cli implements triagectl, the operator command line for the
// triage models: train and score them, run a prediction locally or against
// a running service, and list the catalogs.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/postgres"
)

var (
	configPath string
	logLevel   string
	trainPath  string
	testPath   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "triagectl",
	Short:         "Operate the symptom triage models",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&trainPath, "train", "", "override corpus.trainPath")
	rootCmd.PersistentFlags().StringVar(&testPath, "test", "", "override corpus.testPath")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
}

// Execute runs the root command with output on stdout.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if trainPath != "" {
		cfg.Corpus.TrainPath = trainPath
	}
	if testPath != "" {
		cfg.Corpus.TestPath = testPath
	}
	return cfg, nil
}

// buildEngine trains a local engine from the configured corpora.
func buildEngine(ctx context.Context, cfg *config.Config) (*triage.Engine, func(), error) {
	deps := triage.Deps{}
	cleanup := func() {}
	if cfg.Knowledge.Source == "postgres" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to knowledge database: %w", err)
		}
		deps.DB = db
		cleanup = func() { db.Close() }
	}
	engine, err := triage.Build(ctx, cfg, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}
