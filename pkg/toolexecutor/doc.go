// Package toolexecutor is the tool bridge between the agent loop and tool
// handlers. It keeps a registry of named tools, describes them to the model
// as ToolSpecs with a JSON schema, and executes calls.
//
// Execute checks, in order: the tool exists, the merged allow/deny policy
// permits it, and the arguments validate against the tool's schema. The
// handler then runs under a timeout with the ExecutionContext available
// through ExecutionFromContext. Handler output longer than 10 KiB is
// truncated. Every failure is returned as an error; the loop decides how
// to report it to the model.
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []toolexecutor.ToolParameter{{Name: "text", Type: "string", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
//			return params["text"], nil
//		},
//	})
//	out, err := exec.Execute(ctx, "echo", map[string]interface{}{"text": "hi"}, nil)
package toolexecutor
