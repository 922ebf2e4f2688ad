package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/sandbox"
	"github.com/agentrt/core/pkg/schema"
	"github.com/agentrt/core/pkg/tool"
)

// CmdRun builds the cmd.run tool. Commands run through the supplied
// sandbox (nil means unrestricted) and are bounded by the sandbox's own
// timeout and max-output-size independent of the registry's timeout
// middleware, matching the concurrency model's "command subprocesses are
// additionally bounded by their own timeout and a maximum output size."
func CmdRun(sb *sandbox.Sandbox) *tool.Definition {
	return &tool.Definition{
		Name:        "cmd.run",
		Category:    "exec",
		Description: "Run a shell command and capture stdout, stderr, and exit code.",
		Input: schema.Object(map[string]*schema.Type{
			"command": schema.String("shell command to execute"),
		}, "command"),
		Output: schema.Object(map[string]*schema.Type{
			"stdout":    schema.String("captured stdout"),
			"stderr":    schema.String("captured stderr"),
			"exitCode":  schema.Number("process exit code"),
		}),
		Permissions: []permission.Category{permission.Exec},
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			command, _ := input["command"].(string)
			command = strings.TrimSpace(command)
			if command == "" {
				return &tool.Result{Success: false, Error: "command must be a non-empty string"}, nil
			}

			if sb != nil {
				res := sb.Execute(ctx, command)
				out := map[string]any{
					"stdout":   res.Stdout,
					"stderr":   res.Stderr,
					"exitCode": res.ExitCode,
				}
				if res.Error != nil {
					return &tool.Result{Success: false, Output: out, Error: res.Error.Error()}, nil
				}
				return &tool.Result{Success: res.ExitCode == 0, Output: out}, nil
			}

			cc := exec.CommandContext(ctx, "sh", "-c", command)
			cc.Dir = ec.WorkDir
			var stdout, stderr bytes.Buffer
			cc.Stdout = &stdout
			cc.Stderr = &stderr
			start := time.Now()
			err := cc.Run()
			_ = time.Since(start)
			exitCode := 0
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return &tool.Result{Success: false, Error: fmt.Sprintf("command failed: %v", err)}, nil
				}
			}
			out := map[string]any{
				"stdout":   stdout.String(),
				"stderr":   stderr.String(),
				"exitCode": exitCode,
			}
			return &tool.Result{Success: exitCode == 0, Output: out}, nil
		},
	}
}
