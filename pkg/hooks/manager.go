package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Lifecycle events a script hook can bind to.
const (
	EventAgentStart = "agent:start"
	EventAgentEnd   = "agent:end"
	EventToolBefore = "tool:before"
	EventToolAfter  = "tool:after"
)

const envPrefix = "AGENTCORE_HOOK_"

// Hook defines a lifecycle event hook.
type Hook struct {
	ID      string
	Event   string
	Script  string
	Timeout time.Duration
	Enabled bool
}

// Config configures a Hook manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Outcome is the result of running one hook script.
type Outcome struct {
	HookID   string
	Event    string
	Output   string
	Duration time.Duration
	Err      error
}

// Manager executes configured hooks for lifecycle events.
type Manager struct {
	enabled bool
	logger  zerolog.Logger

	mu           sync.RWMutex
	hooksByEvent map[string][]Hook
}

// NewManager creates a hook manager.
func NewManager(cfg Config) (*Manager, error) {
	manager := &Manager{
		enabled:      cfg.Enabled,
		logger:       cfg.Logger.With().Str("component", "hooks").Logger(),
		hooksByEvent: make(map[string][]Hook),
	}

	if !cfg.Enabled {
		return manager, nil
	}

	for _, hook := range cfg.Hooks {
		if err := manager.Register(hook); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

// Register adds a hook. Disabled hooks are ignored.
func (m *Manager) Register(hook Hook) error {
	if !hook.Enabled {
		return nil
	}
	event := strings.TrimSpace(hook.Event)
	if event == "" {
		return fmt.Errorf("hook event is required")
	}
	if strings.TrimSpace(hook.Script) == "" {
		return fmt.Errorf("hook script is required for event %q", event)
	}
	if strings.TrimSpace(hook.ID) == "" {
		hook.ID = event
	}

	m.mu.Lock()
	m.hooksByEvent[event] = append(m.hooksByEvent[event], hook)
	m.mu.Unlock()
	return nil
}

// Has reports whether any hook is bound to event.
func (m *Manager) Has(event string) bool {
	if m == nil || !m.enabled {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooksByEvent[strings.TrimSpace(event)]) > 0
}

// Trigger executes hooks registered for an event.
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]interface{}) error {
	if strings.TrimSpace(event) == "" {
		return fmt.Errorf("event is required")
	}

	var errs []error
	for _, outcome := range m.TriggerEach(ctx, event, data) {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
		}
	}

	return errors.Join(errs...)
}

// TriggerEach runs every hook bound to event in registration order and
// returns one outcome per hook. A failing hook does not stop the rest.
func (m *Manager) TriggerEach(ctx context.Context, event string, data map[string]interface{}) []Outcome {
	if m == nil || !m.enabled {
		return nil
	}
	event = strings.TrimSpace(event)

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooksByEvent[event]...)
	m.mu.RUnlock()
	if len(hooks) == 0 {
		return nil
	}

	outcomes := make([]Outcome, 0, len(hooks))
	for _, hook := range hooks {
		outcomes = append(outcomes, m.executeHook(ctx, event, hook, data))
	}
	return outcomes
}

func (m *Manager) executeHook(ctx context.Context, event string, hook Hook, data map[string]interface{}) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	outcome := Outcome{HookID: hook.ID, Event: event}
	start := time.Now()

	runCtx := ctx
	cancel := func() {}
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(event, data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outcome.Duration = time.Since(start)
	outcome.Output = strings.TrimSpace(stdout.String())

	if err != nil {
		if errText := strings.TrimSpace(stderr.String()); errText != "" {
			outcome.Err = fmt.Errorf("hook %s failed: %w: %s", hook.ID, err, errText)
		} else {
			outcome.Err = fmt.Errorf("hook %s failed: %w", hook.ID, err)
		}
		return outcome
	}

	m.logger.Debug().
		Str("event", event).
		Str("hook_id", hook.ID).
		Dur("duration", outcome.Duration).
		Str("output", outcome.Output).
		Msg("Hook executed")

	return outcome
}

func buildHookEnvironment(event string, data map[string]interface{}) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, envPrefix+"EVENT="+event)

	if len(data) == 0 {
		return env
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		envKey := envPrefix + "DATA_" + normalizeEnvKey(key)
		env = append(env, envKey+"="+fmt.Sprintf("%v", data[key]))
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
