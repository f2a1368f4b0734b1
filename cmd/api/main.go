package main

import (
	"fmt"
	"os"

	"github.com/5w1tchy/library-api/internal/config"
	"github.com/5w1tchy/library-api/internal/logx"
	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     config.Config
	flush   = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "library-api",
	Short:         "Library lending API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load(envFile)
		var err error
		if flush, err = logx.Install(cfg.AppEnv); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before the environment")

	rootCmd.AddCommand(serveCmd, migrateCmd, libraryCmd, bookCmd, copyCmd, userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
