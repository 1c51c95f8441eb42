package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/janhq/evaluator-server/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  `Inspect the effective environment configuration and its schema.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the configuration resolved from the environment and .env files. Credentials are masked.`,
	RunE:  runConfigShow,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON Schema",
	RunE:  runConfigSchema,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)

	configShowCmd.Flags().String("format", "yaml", "Output format: yaml, json")
	configSchemaCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(cfg.Redacted())
	case "json":
		data, err = json.MarshalIndent(cfg.Redacted(), "", "  ")
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	data, err := json.MarshalIndent(config.JSONSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	if verbose(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "schema written to %s\n", output)
	}
	return nil
}
