package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/eventstream"
	"github.com/spf13/cobra"
)

var (
	runSession     string
	runPrompt      string
	runSystemFile  string
	runStream      bool
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop for one prompt",
	Long: `Run the agent loop for one prompt in a session.
The model may call the built-in tools over several turns. The final
response is printed to stdout and the run is archived in the run store.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringVar(&runSession, "session", "", "session id; runs in one session are serialized")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "user prompt (reads stdin when empty)")
	runCmd.Flags().StringVar(&runSystemFile, "system", "", "file containing the system prompt")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "print response text as it streams")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	_ = runCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	stream := cfg.Agent.Streaming
	if cmd.Flags().Changed("stream") {
		stream = runStream
	}
	cfg.Agent.Streaming = stream

	prompt, err := readPrompt(cmd.InOrStdin())
	if err != nil {
		return err
	}
	systemPrompt := cfg.Agent.SystemPrompt
	if runSystemFile != "" {
		data, err := os.ReadFile(runSystemFile)
		if err != nil {
			return fmt.Errorf("failed to read system prompt: %w", err)
		}
		systemPrompt = string(data)
	}

	out := cmd.OutOrStdout()
	a, err := newApp(cfg, out, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if runMetricsAddr != "" {
		srv, err := startMetricsServer(runMetricsAddr, a.log.GetZerolog())
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := &eventPrinter{out: out, errOut: cmd.ErrOrStderr(), stream: stream}
	result, err := a.runner.Run(ctx, agent.RunParams{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		SessionID:    runSession,
		OnEvent:      printer.handle,
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	return printer.finish(result)
}

// readPrompt returns --prompt, or stdin when the flag is empty.
func readPrompt(stdin io.Reader) (string, error) {
	if strings.TrimSpace(runPrompt) != "" {
		return runPrompt, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	return prompt, nil
}

// eventPrinter renders run events for a terminal.
type eventPrinter struct {
	out      io.Writer
	errOut   io.Writer
	stream   bool
	streamed bool
}

func (p *eventPrinter) handle(event eventstream.Event) {
	switch event.Type {
	case eventstream.EventMessageStart:
		if event.Text == "retry" && p.streamed {
			fmt.Fprintln(p.out)
			fmt.Fprintln(p.errOut, "context overflow, retrying with a compacted window")
		}
	case eventstream.EventMessageUpdate:
		if p.stream && event.Delta != "" {
			fmt.Fprint(p.out, event.Delta)
			p.streamed = true
		}
	case eventstream.EventToolExecutionStart:
		fmt.Fprintf(p.errOut, "-> %s\n", event.ToolName)
	case eventstream.EventToolError:
		fmt.Fprintf(p.errOut, "!! %s: %s\n", event.ToolName, event.Error)
	case eventstream.EventWarning:
		fmt.Fprintf(p.errOut, "warning (%s): %s\n", event.Stage, event.Text)
	}
}

func (p *eventPrinter) finish(result *agent.AgentResult) error {
	if p.streamed {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "---")
	}
	if result.Response != "" {
		fmt.Fprintln(p.out, result.Response)
	}

	switch result.Status {
	case agent.StatusCompleted:
		return nil
	case agent.StatusTimeout:
		return fmt.Errorf("run %s timed out", result.RunID)
	default:
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
	}
}

// runContext is the background context used when cobra has none.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
