package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nwiesmann/faktotum/pkg/tool"
)

// NewSaveMarkdown builds the save_markdown capability. Files land
// under baseDir; the model supplies only the file name.
func NewSaveMarkdown(baseDir string) *tool.Func {
	return tool.NewFunc(
		"save_markdown",
		"Save content to a markdown file. Use this to persist research results, documentation, or architecture designs for later reference.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "Name of the file, with or without .md extension",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The markdown content to save",
				},
			},
			"required": []string{"filename", "content"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			filename, _ := args["filename"].(string)
			content, _ := args["content"].(string)
			if filename == "" {
				return "", fmt.Errorf("filename is required")
			}
			return saveMarkdown(baseDir, filename, content)
		},
	)
}

func saveMarkdown(baseDir, filename, content string) (string, error) {
	// The model chooses the name; never let it escape the output dir.
	filename = filepath.Base(filename)
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(baseDir, filename)
	header := fmt.Sprintf("<!-- Generated: %s -->\n\n", time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(header+content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "Saved to " + abs, nil
}
