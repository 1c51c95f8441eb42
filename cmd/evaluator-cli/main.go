package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/janhq/evaluator-server/internal/config"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "evaluator-cli",
	Short: "Operator CLI for evaluator-server",
	Long: `evaluator-cli inspects and operates an evaluator-server deployment.

It reads the same environment variables (and .env files) as the server.

Examples:
  # Configuration
  evaluator-cli config show
  evaluator-cli config schema -o config.schema.json

  # Database
  evaluator-cli db migrate

  # Redis streams
  evaluator-cli stream stat
  evaluator-cli stream dispatch --user guest_test --message "ping"`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		envFile, _ := cmd.Flags().GetString("env-file")
		loadEnvFiles(envFile)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(streamCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("env-file", "", "Extra .env file to load after the defaults")
}

// loadConfig loads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(extra string) {
	paths := []string{".env", "../.env", "../../.env"}
	if extra != "" {
		paths = append(paths, extra)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

func verbose(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("verbose")
	return v
}
