package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:           "scriptslap-server",
		Short:         "ScriptSlap script generation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, envFile)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the watchdog worker",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath, envFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the SQL schema file to the configured database",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(configPath, envFile)
			},
		},
		parseCmd(),
	)
	return cmd
}
