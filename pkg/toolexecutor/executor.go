package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/agentcore/pkg/transcript"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrToolNotFound is returned for names that were never registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolDenied is returned when a policy blocks the tool.
	ErrToolDenied = errors.New("tool not allowed by policy")
	// ErrInvalidArguments is returned when arguments fail schema validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolTimeout is returned when a handler outlives its timeout.
	ErrToolTimeout = errors.New("tool execution timeout")
)

const (
	defaultTimeout = 30 * time.Second
	maxOutputSize  = 10 * 1024 // 10KB
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

type registeredTool struct {
	def       ToolDefinition
	schemaMap map[string]interface{}
	schema    *gojsonschema.Schema
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools  map[string]*registeredTool
	policy *ToolPolicy
	mu     sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	te := &ToolExecutor{
		tools: make(map[string]*registeredTool),
	}

	log.Debug().Msg("Tool executor initialized")

	return te
}

// SetPolicy sets the executor-wide policy. Per-call policies are merged with it.
func (te *ToolExecutor) SetPolicy(policy *ToolPolicy) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.policy = policy
}

// RegisterTool registers a new tool
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schemaMap := buildSchemaMap(def)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	te.tools[def.Name] = &registeredTool{def: def, schemaMap: schemaMap, schema: schema}

	log.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// UnregisterTool removes a tool
func (te *ToolExecutor) UnregisterTool(name string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	delete(te.tools, name)
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	tool, ok := te.tools[name]
	if !ok {
		return nil
	}
	def := tool.def
	return &def
}

// ToolNames returns all registered tool names, sorted
func (te *ToolExecutor) ToolNames() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	names := make([]string, 0, len(te.tools))
	for name := range te.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTools returns the ToolSpec of every tool the executor-wide policy allows,
// sorted by name
func (te *ToolExecutor) ListTools(ctx context.Context) ([]transcript.ToolSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	te.mu.RLock()
	defer te.mu.RUnlock()

	specs := make([]transcript.ToolSpec, 0, len(te.tools))
	for name, tool := range te.tools {
		if te.policy != nil && !te.policy.IsToolAllowed(name) {
			continue
		}
		specs = append(specs, transcript.ToolSpec{
			Name:        name,
			Description: tool.def.Description,
			Parameters:  tool.schemaMap,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

// Execute validates params against the tool's schema and runs its handler
// under a timeout. The result is truncated past 10KB once stringified.
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) (interface{}, error) {
	startTime := time.Now()
	if execCtx == nil {
		execCtx = &ExecutionContext{}
	}
	if execCtx.StartTime.IsZero() {
		execCtx.StartTime = startTime
	}

	te.mu.RLock()
	tool := te.tools[toolName]
	policy := MergePolicies(te.policy, execCtx.ToolPolicy)
	te.mu.RUnlock()

	if policy != nil && !policy.IsToolAllowed(toolName) {
		log.Warn().
			Str("tool", toolName).
			Str("session_id", execCtx.SessionID).
			Msg("Tool execution blocked by policy")
		return nil, fmt.Errorf("%w: %s", ErrToolDenied, toolName)
	}

	if tool == nil {
		log.Warn().Str("tool", toolName).Msg("Tool not found")
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validateParameters(tool.schema, params); err != nil {
		log.Warn().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	timeout := defaultTimeout
	if execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(WithExecution(ctx, execCtx), timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", toolName, r)}
			}
		}()
		result, err := tool.def.Handler(timeoutCtx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(startTime)
		if out.err != nil {
			log.Debug().
				Str("tool", toolName).
				Dur("duration", duration).
				Err(out.err).
				Msg("Tool execution failed")
			return nil, out.err
		}

		output, truncated := truncateOutput(out.result)
		log.Debug().
			Str("tool", toolName).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")
		return output, nil

	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().
			Str("tool", toolName).
			Dur("timeout", timeout).
			Msg("Tool execution timeout")
		return nil, fmt.Errorf("%w after %v", ErrToolTimeout, timeout)
	}
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// buildSchemaMap generates a JSON Schema object from tool parameters
func buildSchemaMap(def ToolDefinition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}
	return schemaMap
}

// validateParameters validates parameters against a JSON Schema
func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	return nil
}

// truncateOutput truncates output if it exceeds the size limit
func truncateOutput(output interface{}) (interface{}, bool) {
	str, isString := output.(string)
	if !isString {
		str = fmt.Sprintf("%v", output)
	}

	if len(str) <= maxOutputSize {
		return output, false
	}

	log.Warn().
		Int("original", len(str)).
		Int("truncated", maxOutputSize).
		Msg("Output truncated")

	return str[:maxOutputSize] + "\n... [output truncated]", true
}
