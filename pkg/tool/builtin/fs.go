// Package builtin provides the registry's built-in tool set: fs.read,
// fs.write, fs.patch, fs.exists, cmd.run, and net.http. Each is a thin
// tool.Definition constructor so Register(FSRead()) reads the same way
// the spec's dotted tool names do.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/schema"
	"github.com/agentrt/core/pkg/tool"
)

func resolvePath(workDir, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("path required")
	}
	if strings.Contains(raw, "\x00") {
		return "", fmt.Errorf("path contains null byte")
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), nil
	}
	return filepath.Clean(filepath.Join(workDir, raw)), nil
}

// FSRead builds the fs.read tool: reads a file's contents.
func FSRead() *tool.Definition {
	return &tool.Definition{
		Name:        "fs.read",
		Category:    "filesystem",
		Description: "Read the contents of a file.",
		Input: schema.Object(map[string]*schema.Type{
			"path": schema.String("path to the file, relative to the working directory"),
		}, "path"),
		Output:      schema.Object(map[string]*schema.Type{"content": schema.String("file contents")}),
		Permissions: []permission.Category{permission.FilesystemRead},
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			path, _ := input["path"].(string)
			abs, err := resolvePath(ec.WorkDir, path)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			return &tool.Result{Success: true, Output: map[string]any{"path": abs, "content": string(data)}}, nil
		},
	}
}

// FSWrite builds the fs.write tool: creates or overwrites a file,
// creating parent directories as needed.
func FSWrite() *tool.Definition {
	return &tool.Definition{
		Name:        "fs.write",
		Category:    "filesystem",
		Description: "Write content to a file, creating it (and parent directories) if needed.",
		Input: schema.Object(map[string]*schema.Type{
			"path":    schema.String("path to the file, relative to the working directory"),
			"content": schema.String("content to write"),
		}, "path", "content"),
		Output:      schema.Object(map[string]*schema.Type{"path": schema.String("absolute path written")}),
		Permissions: []permission.Category{permission.FilesystemWrite},
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			path, _ := input["path"].(string)
			content, _ := input["content"].(string)
			abs, err := resolvePath(ec.WorkDir, path)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			if ec.DryRun {
				return &tool.Result{Success: true, Output: map[string]any{"path": abs, "dry_run": true}}, nil
			}
			if dir := filepath.Dir(abs); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return &tool.Result{Success: false, Error: err.Error()}, nil
				}
			}
			if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			return &tool.Result{Success: true, Output: map[string]any{"path": abs, "bytes": len(content)}}, nil
		},
	}
}

// FSPatch builds the fs.patch tool: replaces the first occurrence of
// search with replace in an existing file.
func FSPatch() *tool.Definition {
	return &tool.Definition{
		Name:        "fs.patch",
		Category:    "filesystem",
		Description: "Replace the first occurrence of a search string with a replacement in an existing file.",
		Input: schema.Object(map[string]*schema.Type{
			"path":    schema.String("path to the file, relative to the working directory"),
			"search":  schema.String("exact text to find"),
			"replace": schema.String("replacement text"),
		}, "path", "search", "replace"),
		Output:      schema.Object(map[string]*schema.Type{"path": schema.String("absolute path patched"), "diff": schema.String("unified diff")}),
		Permissions: []permission.Category{permission.FilesystemWrite},
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			path, _ := input["path"].(string)
			search, _ := input["search"].(string)
			replace, _ := input["replace"].(string)
			abs, err := resolvePath(ec.WorkDir, path)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			before, err := os.ReadFile(abs)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			idx := strings.Index(string(before), search)
			if idx < 0 {
				return &tool.Result{Success: false, Error: "search text not found"}, nil
			}
			after := string(before)[:idx] + replace + string(before)[idx+len(search):]
			if ec.DryRun {
				return &tool.Result{Success: true, Output: map[string]any{"path": abs, "dry_run": true}}, nil
			}
			if err := os.WriteFile(abs, []byte(after), 0o644); err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			diff := difflib.UnifiedDiff{
				A:        difflib.SplitLines(string(before)),
				B:        difflib.SplitLines(after),
				FromFile: abs,
				ToFile:   abs,
				Context:  3,
			}
			patch, _ := difflib.GetUnifiedDiffString(diff)
			return &tool.Result{Success: true, Output: map[string]any{"path": abs, "diff": patch}}, nil
		},
	}
}

// FSExists builds the fs.exists tool, used by the Verification Engine's
// fileExists check as well as directly by skills.
func FSExists() *tool.Definition {
	return &tool.Definition{
		Name:        "fs.exists",
		Category:    "filesystem",
		Description: "Check whether a file exists.",
		Input: schema.Object(map[string]*schema.Type{
			"path": schema.String("path to the file, relative to the working directory"),
		}, "path"),
		Output:      schema.Object(map[string]*schema.Type{"exists": schema.Bool("whether the file exists")}),
		Permissions: []permission.Category{permission.FilesystemRead},
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			path, _ := input["path"].(string)
			abs, err := resolvePath(ec.WorkDir, path)
			if err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			_, statErr := os.Stat(abs)
			exists := statErr == nil
			return &tool.Result{Success: true, Output: map[string]any{"path": abs, "exists": exists}}, nil
		},
	}
}
