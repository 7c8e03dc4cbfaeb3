package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	runsSession string
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs of a session",
	Args:  cobra.NoArgs,
	RunE:  runListRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsSession, "session", "", "session id")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs, 0 for all")
	_ = runsCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()

	results, err := store.ListBySession(runContext(cmd), runsSession, runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No runs for session %s\n", runsSession)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tTURNS\tTOOLS\tDURATION\tRESPONSE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.RunID, r.Status, r.Turns, len(r.ToolExecutions),
			r.Duration.Round(time.Millisecond), preview(r.Response, 40))
	}
	return w.Flush()
}

func preview(s string, n int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
