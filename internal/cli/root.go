package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "agentcore - tool-using agent loop runner",
	Long: `agentcore drives a language model through multi-turn tool use.
Runs are serialized per session, context is compacted to fit the model
window, and every finished run is archived for later inspection.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentcore/agentcore.json)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error); overrides logging.level")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// Execute runs the command named by os.Args.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the build version.
func GetVersion() string {
	return version
}
