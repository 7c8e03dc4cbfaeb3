package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/internal/logger"
	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/contextwindow"
	"github.com/harun/agentcore/pkg/coretools"
	"github.com/harun/agentcore/pkg/hooks"
	"github.com/harun/agentcore/pkg/planner"
	"github.com/harun/agentcore/pkg/runqueue"
	"github.com/harun/agentcore/pkg/runstore"
	"github.com/harun/agentcore/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// newModelClient builds the model client from the configured AI profiles.
// Tests replace it with a scripted client.
var newModelClient = func(cfg *config.Config, log zerolog.Logger) (agent.ModelClient, error) {
	return agent.NewFailoverClient(agent.FailoverConfig{
		Profiles: cfg.AuthProfiles(),
		Logger:   log,
	})
}

// app holds the components wired for one CLI invocation.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	queue  *runqueue.Queue
	store  runstore.Store
	runner *agent.Runner
}

// loadConfig loads the config file and applies the --log-level override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, console io.Writer) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Output:    console,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

func openStore(cfg *config.Config) (runstore.Store, error) {
	switch cfg.RunStore.Driver {
	case "", "memory":
		return runstore.NewMemoryStore(), nil
	case "sqlite":
		return runstore.NewSQLiteStore(cfg.RunStorePath())
	default:
		return nil, fmt.Errorf("unsupported run_store driver: %s", cfg.RunStore.Driver)
	}
}

// newApp wires config, logging, tools, hooks, the agent loop and the runner.
// Messages from send_message are written to out.
func newApp(cfg *config.Config, out, console io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log, err := newLogger(cfg, console)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zl := log.GetZerolog()

	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		zl.Warn().Err(err).Msg("Audit log disabled")
	}
	if err := tracing.InitOpenTelemetry("agentcore"); err != nil {
		zl.Warn().Err(err).Msg("Tracing disabled")
	}

	client, err := newModelClient(cfg, zl)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	workspace := cfg.WorkspacePath
	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
	}
	executor := toolexecutor.New()
	if err := coretools.RegisterCoreTools(executor, coretools.Options{
		WorkspaceRoot: workspace,
		Sender:        coretools.WriterSender(out),
	}); err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	executor.SetPolicy(cfg.ToolPolicy())

	hookManager, err := hooks.NewManager(cfg.HooksManagerConfig(zl))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to load hooks: %w", err)
	}

	loop, err := agent.NewLoop(agent.LoopConfig{
		Config:  cfg.AgentLoopConfig(),
		Client:  client,
		Tools:   executor,
		Window:  contextwindow.NewManager(cfg.ContextWindowConfig(zl)),
		Planner: planner.NewPlanner(cfg.PlannerConfig()),
		Hooks:   agent.ScriptHooks(hookManager),
		Logger:  zl,
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	queueCfg := cfg.RunQueueConfig(zl)
	queue := runqueue.New(queueCfg)
	runner, err := agent.NewRunner(agent.RunnerConfig{
		Loop:       loop,
		Queue:      queue,
		Recorder:   store,
		RunTimeout: queueCfg.RunTimeout,
		Logger:     zl,
	})
	if err != nil {
		queue.Close()
		store.Close()
		log.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		queue:  queue,
		store:  store,
		runner: runner,
	}, nil
}

// Close releases the queue, the store and the log file.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return errors.Join(
		a.queue.Close(),
		a.store.Close(),
		tracing.ShutdownOpenTelemetry(ctx),
		a.log.Close(),
	)
}
