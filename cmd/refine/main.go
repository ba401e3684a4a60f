package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/todmy/logic-refine/internal/config"
)

var (
	cfg    config.Config
	logger *logrus.Logger

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "refine",
	Short: "Formalize, solve and refine natural-language reasoning problems",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		logger.SetOutput(cmd.ErrOrStderr())
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config")

	rootCmd.AddCommand(newSolveCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newEvaluateCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
