package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harun/agentcore/pkg/toolexecutor"
)

// SendMessageToolName is the built-in messaging tool. Its output is
// compared against the final response to suppress duplicate replies.
const SendMessageToolName = "send_message"

const (
	defaultMaxBytes   = 200000
	defaultMaxEntries = 500
)

// Sender delivers a message produced by the send_message tool.
type Sender func(ctx context.Context, sessionID, text string) error

// Options configures core tool registration.
type Options struct {
	WorkspaceRoot string
	// Sender enables send_message when set.
	Sender Sender
}

// RegisterCoreTools registers baseline filesystem and messaging tools.
func RegisterCoreTools(executor *toolexecutor.ToolExecutor, opts Options) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}

	tools := []toolexecutor.ToolDefinition{
		listFilesTool(opts),
		readFileTool(opts),
		writeFileTool(opts),
	}
	if opts.Sender != nil {
		tools = append(tools, sendMessageTool(opts))
	}

	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func listFilesTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "list_files",
		Description: "List files in a workspace directory.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative directory path (default workspace root)", Required: false},
			{Name: "recursive", Type: "boolean", Description: "Walk subdirectories (default false)", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			workspaceRoot, err := resolveWorkspaceRoot(toolexecutor.ExecutionFromContext(ctx), opts)
			if err != nil {
				return nil, err
			}
			dir := workspaceRoot
			if pathValue, _ := params["path"].(string); strings.TrimSpace(pathValue) != "" {
				if dir, err = resolvePathInWorkspace(workspaceRoot, pathValue); err != nil {
					return nil, err
				}
			}
			recursive, _ := params["recursive"].(bool)

			entries, truncated, err := listDir(ctx, workspaceRoot, dir, recursive)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"files":     entries,
				"count":     len(entries),
				"truncated": truncated,
			}, nil
		},
	}
}

func readFileTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to read (default 200000)", Required: false, Default: defaultMaxBytes},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			workspaceRoot, err := resolveWorkspaceRoot(toolexecutor.ExecutionFromContext(ctx), opts)
			if err != nil {
				return nil, err
			}
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(workspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			maxBytes := int64(defaultMaxBytes)
			if raw, ok := params["max_bytes"].(float64); ok && raw > 0 {
				maxBytes = int64(raw)
			}

			data, truncated, err := readFileWithLimit(target, maxBytes)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append to file (default false)", Required: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			workspaceRoot, err := resolveWorkspaceRoot(toolexecutor.ExecutionFromContext(ctx), opts)
			if err != nil {
				return nil, err
			}
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(workspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)
			appendMode, _ := params["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			f, err := os.OpenFile(target, flag, 0644)
			if err != nil {
				return nil, err
			}
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":   pathValue,
				"bytes":  len(content),
				"append": appendMode,
			}, nil
		},
	}
}

func sendMessageTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        SendMessageToolName,
		Description: "Send a message to the user immediately, before the run finishes.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "message", Type: "string", Description: "Message text", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			text, _ := params["message"].(string)
			text = strings.TrimSpace(text)
			if text == "" {
				return nil, fmt.Errorf("message is required")
			}

			sessionID := ""
			if execCtx := toolexecutor.ExecutionFromContext(ctx); execCtx != nil {
				sessionID = execCtx.SessionID
			}
			if err := opts.Sender(ctx, sessionID, text); err != nil {
				return nil, fmt.Errorf("send message: %w", err)
			}

			return map[string]interface{}{
				"delivered": true,
				"message":   text,
			}, nil
		},
	}
}

// WriterSender returns a Sender that writes each message as a line to w.
func WriterSender(w io.Writer) Sender {
	return func(ctx context.Context, sessionID, text string) error {
		_, err := fmt.Fprintln(w, text)
		return err
	}
}

func listDir(ctx context.Context, workspaceRoot, dir string, recursive bool) ([]string, bool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, false, err
	}
	if !info.IsDir() {
		return nil, false, fmt.Errorf("%s is not a directory", dir)
	}

	var entries []string
	truncated := false
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if len(entries) >= defaultMaxEntries {
			truncated = true
			return filepath.SkipAll
		}

		rel, err := filepath.Rel(workspaceRoot, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			entries = append(entries, rel+string(filepath.Separator))
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, rel)
		return nil
	})
	if walkErr != nil {
		return nil, false, walkErr
	}

	sort.Strings(entries)
	return entries, truncated, nil
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	if limit <= 0 {
		limit = defaultMaxBytes
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}

	truncated := false
	extra := make([]byte, 1)
	if n, _ := file.Read(extra); n > 0 {
		truncated = true
	}
	return buf.Bytes(), truncated, nil
}

func resolveWorkspaceRoot(execCtx *toolexecutor.ExecutionContext, opts Options) (string, error) {
	if execCtx != nil && strings.TrimSpace(execCtx.WorkingDir) != "" {
		return filepath.Clean(execCtx.WorkingDir), nil
	}
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		return filepath.Clean(opts.WorkspaceRoot), nil
	}
	return "", fmt.Errorf("workspace root is not configured")
}

func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
		return candidate, nil
	}
	return "", fmt.Errorf("path %q is outside workspace root", pathValue)
}
