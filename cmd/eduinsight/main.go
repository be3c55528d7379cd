// Command eduinsight serves the EduInsight API and runs its tools from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/eduinsight/pkg/config"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app carries the configuration shared by every command.
type app struct {
	envFile     string
	logLevel    string
	logPretty   bool
	dataDir     string
	datasetFile string
	modelDir    string
	apiURL      string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "eduinsight",
		Short:         "EduInsight Analytics: student performance models and insights",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	f.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	f.BoolVar(&a.logPretty, "log-pretty", false, "human-readable console logs; overrides LOG_PRETTY")
	f.StringVar(&a.dataDir, "data-dir", "", "dataset directory; overrides DATA_DIR")
	f.StringVar(&a.datasetFile, "dataset-file", "", "dataset file name; overrides DATASET_FILE")
	f.StringVar(&a.modelDir, "model-dir", "", "model artifact directory; overrides MODEL_DIR")
	f.StringVar(&a.apiURL, "api-url", "", "API base URL for client commands; overrides EDUINSIGHT_API_URL")

	root.AddCommand(
		a.newServeCmd(),
		a.newTrainCmd(),
		a.newPredictCmd(),
		a.newClassifyCmd(),
		a.newForecastCmd(),
		a.newExportCmd(),
	)
	return root
}

// configure loads .env and the environment, then applies the flags that
// were set explicitly.
func (a *app) configure(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Logging.Pretty = a.logPretty
	}
	if flags.Changed("data-dir") {
		cfg.Data.Dir = a.dataDir
	}
	if flags.Changed("dataset-file") {
		cfg.Data.File = a.datasetFile
	}
	if flags.Changed("model-dir") {
		cfg.Models.Dir = a.modelDir
	}
	if flags.Changed("api-url") {
		cfg.Client.BaseURL = a.apiURL
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Pretty); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
