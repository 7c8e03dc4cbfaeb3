package observability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() {
		_ = GetAuditLogger().Close()
		auditMu.Lock()
		auditInst = nil
		auditMu.Unlock()
	})

	RecordRunAudit(context.Background(), "run_1", "session-a", "completed", map[string]interface{}{"turns": 2})
	RecordToolAudit(context.Background(), "list_files", "session-a", "success", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var run map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &run))
	assert.Equal(t, "run", run["type"])
	assert.Equal(t, "session-a", run["actor"])
	assert.Equal(t, "completed", run["status"])
	metadata := run["metadata"].(map[string]interface{})
	assert.Equal(t, "run_1", metadata["run_id"])

	var tool map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &tool))
	assert.Equal(t, "execute:list_files", tool["action"])
}

func TestDefaultAuditLoggerDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		GetAuditLogger().Record(context.Background(), AuditEvent{Type: "run", Action: "run"})
	})
}

func TestMetricsRecorders(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		RecordQueueEnqueue("session-a", 1)
		RecordQueueCompletion("session-a", 0, "completed", 0)
		RecordRun("completed", 0, 2)
		RecordToolExecution("list_files", 0, true)
		RecordCompaction("hybrid", "preflight")
		RecordOverflowRetry()
		RecordHookFailure("before_tool_call")
		RecordModelCall("anthropic", 0, false)
		SetProviderCooldown("anthropic", true)
	})
	assert.NotNil(t, MetricsHandler())
}
