package cli

import (
	"fmt"

	"github.com/harun/agentcore/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the agentcore configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides applied and
report every problem found: ranges, providers, API key formats, context
strategy, hooks and the run store driver.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		redactProfiles(cfg)
		fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	loader := config.NewLoader(cfgFile)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	problems := config.NewValidator().ValidateConfig(cfg)
	if err := cfg.Validate(); err != nil {
		problems = append([]error{err}, problems...)
	}

	if len(problems) > 0 {
		fmt.Fprintf(out, "Configuration %s has %d problem(s):\n", loader.GetConfigPath(), len(problems))
		for _, p := range problems {
			fmt.Fprintf(out, "  - %v\n", p)
		}
		return fmt.Errorf("invalid configuration")
	}

	if !config.NewValidator().KnownModel(cfg.Agent.Model) {
		fmt.Fprintf(out, "Note: model %q has no known context window; the default size is assumed\n", cfg.Agent.Model)
	}
	fmt.Fprintf(out, "Configuration %s is valid\n", loader.GetConfigPath())
	return nil
}

// redactProfiles masks API keys before the config is printed.
func redactProfiles(cfg *config.Config) {
	for i := range cfg.AI.Profiles {
		key := cfg.AI.Profiles[i].APIKey
		if len(key) > 8 {
			cfg.AI.Profiles[i].APIKey = key[:4] + "..." + key[len(key)-4:]
		} else if key != "" {
			cfg.AI.Profiles[i].APIKey = "***"
		}
	}
}
