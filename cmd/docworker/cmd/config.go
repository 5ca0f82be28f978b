package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"docworker/core/config"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configGenerateCmd)

	configGenerateCmd.Flags().StringP("output", "o", "docworker.yaml", "File to write the sample configuration to")
	configGenerateCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration from file, .env and environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%s, queue %s).\n", cfg.Redis, cfg.Worker.Queue)
		return nil
	},
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a sample configuration file with defaults",
	Long: `Write a sample configuration file with every key and its default.

The Redis password is never written; supply it through REDIS_PASSWORD or .env.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		if !force {
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("%s already exists, use --force to overwrite", output)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if err := config.SaveGeneratedConfig(config.GenerateDefault(), output); err != nil {
			return fmt.Errorf("failed to save generated config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s.\n", output)
		return nil
	},
}
