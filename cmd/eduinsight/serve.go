package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/eduinsight/api"
	"github.com/YuminosukeSato/eduinsight/pkg/config"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
	"github.com/YuminosukeSato/eduinsight/registry"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Long: `Serve the HTTP API. Saved models are loaded from the model directory; when
none exist and training on startup is enabled, they are trained from the
dataset first.

Example: eduinsight serve --port 8080 --gin-mode release`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.GetLoggerWithName("serve")
			reg := registry.New(a.cfg.Models.Dir)
			err := reg.Bootstrap(cmd.Context(), a.cfg.Data.Path(), a.cfg.Models.TrainOnStartup, registry.DefaultTrainConfig())
			if err != nil {
				// モデルなしでもデータセット系の API は提供する
				logger.Error("failed to prepare models", err, log.DatasetPathKey, a.cfg.Data.Path())
			}
			return api.NewServer(a.cfg, reg).Run(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 0, "listen port; overrides PORT")
	cmd.Flags().String("gin-mode", "", "gin mode (debug, release, test); overrides GIN_MODE")
	cmd.Flags().Bool("no-train", false, "do not train when no saved models exist")
	return cmd
}

// applyServeFlags copies the serve flags into cfg. Commands without them are
// left untouched.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		v, err := flags.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Server.Port = v
	}
	if flags.Changed("gin-mode") {
		v, err := flags.GetString("gin-mode")
		if err != nil {
			return err
		}
		cfg.Server.GinMode = v
	}
	if flags.Changed("no-train") {
		v, err := flags.GetBool("no-train")
		if err != nil {
			return err
		}
		cfg.Models.TrainOnStartup = !v
	}
	return nil
}
