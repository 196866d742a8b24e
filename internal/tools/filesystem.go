package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveWorkspacePath resolves path against workspace and rejects any
// result that escapes it, the same containment invariant as the teacher's
// original filesystem.go resolvePath (simplified here: existing targets are
// symlink-resolved before the containment check; this module has no sandbox
// container layer to fall back on, so escape is a hard error rather than a
// sandbox/host fallback decision).
func resolveWorkspacePath(path, workspace string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(workspace, path))
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	wsReal, err := filepath.EvalSymlinks(absWorkspace)
	if err != nil {
		wsReal = absWorkspace
	}

	real := resolved
	if r, err := filepath.EvalSymlinks(resolved); err == nil {
		real = r
	}

	if !isPathInside(real, wsReal) {
		return "", fmt.Errorf("access denied: path escapes workspace")
	}
	return resolved, nil
}

func isPathInside(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// ReadFileTool reads a file's contents within the configured workspace.
type ReadFileTool struct {
	workspace string
	maxBytes  int64
}

// NewReadFileTool builds a ReadFileTool rooted at workspace with a 256KB
// read cap.
func NewReadFileTool(workspace string) *ReadFileTool {
	return &ReadFileTool{workspace: workspace, maxBytes: 256 * 1024}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a text file's contents." }

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file, relative to the workspace unless absolute.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, bool) {
	path, _ := args["path"].(string)
	if path == "" {
		return "path is required", true
	}

	resolved, err := resolveWorkspacePath(path, t.workspace)
	if err != nil {
		return err.Error(), true
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Sprintf("stat %s: %v", path, err), true
	}
	if info.IsDir() {
		return fmt.Sprintf("%s is a directory", path), true
	}
	if info.Size() > t.maxBytes {
		return fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), t.maxBytes), true
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Sprintf("read %s: %v", path, err), true
	}
	return string(content), false
}

// WriteFileTool writes a file's contents within the configured workspace,
// creating parent directories as needed.
type WriteFileTool struct {
	workspace string
}

// NewWriteFileTool builds a WriteFileTool rooted at workspace.
func NewWriteFileTool(workspace string) *WriteFileTool {
	return &WriteFileTool{workspace: workspace}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write text content to a file, creating it or overwriting if it already exists."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file, relative to the workspace unless absolute.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Text content to write.",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, bool) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return "path is required", true
	}

	resolved, err := resolveWorkspacePath(path, t.workspace)
	if err != nil {
		return err.Error(), true
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Sprintf("create parent dirs for %s: %v", path, err), true
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("write %s: %v", path, err), true
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), false
}
