package toolexecutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() ToolDefinition {
	return ToolDefinition{
		Name:        "echo",
		Description: "Echo input",
		Parameters: []ToolParameter{
			{Name: "text", Type: "string", Description: "Text to echo", Required: true},
			{Name: "times", Type: "integer", Description: "Repeat count", Default: 1},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params["text"], nil
		},
	}
}

func TestToolExecutor_RegisterTool(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(echoTool()))

	tool := te.GetTool("echo")
	require.NotNil(t, tool)
	assert.Equal(t, "echo", tool.Name)
	assert.Nil(t, te.GetTool("missing"))
}

func TestToolExecutor_RegisterTool_InvalidDefinition(t *testing.T) {
	te := New()
	noop := func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{name: "empty name", def: ToolDefinition{Description: "Test", Handler: noop}},
		{name: "empty description", def: ToolDefinition{Name: "test", Handler: noop}},
		{name: "nil handler", def: ToolDefinition{Name: "test", Description: "Test"}},
		{name: "bad param type", def: ToolDefinition{
			Name: "test", Description: "Test", Handler: noop,
			Parameters: []ToolParameter{{Name: "p", Type: "date", Description: "d"}},
		}},
		{name: "param without description", def: ToolDefinition{
			Name: "test", Description: "Test", Handler: noop,
			Parameters: []ToolParameter{{Name: "p", Type: "string"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, te.RegisterTool(tt.def))
		})
	}
}

func TestToolExecutor_Execute_Success(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	result, err := te.Execute(context.Background(), "echo", map[string]interface{}{"text": "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestToolExecutor_Execute_PassesExecutionContext(t *testing.T) {
	te := New()
	var seen *ExecutionContext
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "ctx",
		Description: "Reads the execution context",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			seen = ExecutionFromContext(ctx)
			return "ok", nil
		},
	}))

	_, err := te.Execute(context.Background(), "ctx", nil, &ExecutionContext{ToolCallID: "call_1", SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "call_1", seen.ToolCallID)
	assert.Equal(t, "s1", seen.SessionID)
	assert.False(t, seen.StartTime.IsZero())
}

func TestToolExecutor_Execute_ToolNotFound(t *testing.T) {
	te := New()

	_, err := te.Execute(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestToolExecutor_Execute_ValidationError(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	t.Run("missing required", func(t *testing.T) {
		_, err := te.Execute(context.Background(), "echo", map[string]interface{}{}, nil)
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := te.Execute(context.Background(), "echo", map[string]interface{}{"text": "a", "extra": 1}, nil)
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := te.Execute(context.Background(), "echo", map[string]interface{}{"text": 42}, nil)
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})
}

func TestToolExecutor_Execute_HandlerError(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "fail",
		Description: "Always fails",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("disk full")
		},
	}))

	_, err := te.Execute(context.Background(), "fail", nil, nil)
	assert.EqualError(t, err, "disk full")
}

func TestToolExecutor_Execute_HandlerPanic(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "boom",
		Description: "Panics",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			panic("bad state")
		},
	}))

	_, err := te.Execute(context.Background(), "boom", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestToolExecutor_Execute_Timeout(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "slow",
		Description: "Slow tool",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			time.Sleep(200 * time.Millisecond)
			return "late", nil
		},
	}))

	_, err := te.Execute(context.Background(), "slow", nil, &ExecutionContext{Timeout: 20 * time.Millisecond})
	assert.ErrorIs(t, err, ErrToolTimeout)
}

func TestToolExecutor_Execute_CallerCancellation(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "wait",
		Description: "Waits for cancellation",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := te.Execute(ctx, "wait", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToolExecutor_Execute_OutputTruncation(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "big",
		Description: "Large output",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return strings.Repeat("x", 20*1024), nil
		},
	}))

	result, err := te.Execute(context.Background(), "big", nil, nil)
	require.NoError(t, err)

	text, ok := result.(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(text, "[output truncated]"))
	assert.Less(t, len(text), 11*1024)
}

func TestToolExecutor_ListTools(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "alpha",
		Description: "First alphabetically",
		Handler:     func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil },
	}))

	specs, err := te.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "echo", specs[1].Name)
	assert.Equal(t, "object", specs[1].Parameters["type"])
	assert.Equal(t, []string{"text"}, specs[1].Parameters["required"])
	assert.Equal(t, []string{"alpha", "echo"}, te.ToolNames())

	te.SetPolicy(&ToolPolicy{Allow: []string{"echo"}})
	specs, err = te.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "echo", specs[0].Name)

	te.UnregisterTool("echo")
	specs, err = te.ListTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, specs)
}
