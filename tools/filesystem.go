package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/errors"
)

// FileCreateTool writes a new file (or replaces an existing one).
type FileCreateTool struct {
	fsAccess *config.FilesystemAccess
}

func (t *FileCreateTool) Name() string { return "file_create" }
func (t *FileCreateTool) Description() string {
	return "Creates a file with the given content, replacing it entirely if it exists. Parent directories are created as needed."
}
func (t *FileCreateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to create.",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Full content to write.",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *FileCreateTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, pathOk := stringArg(args, "path")
	content, contentOk := stringArg(args, "content")
	if !pathOk || !contentOk {
		return "", errors.New("missing or invalid 'path' or 'content' arguments")
	}

	if err := t.checkWritable(path); err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", errors.Wrapf(err, "failed to create directory for '%s'", path)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write file '%s'", path)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}

func (t *FileCreateTool) checkWritable(path string) error {
	return checkWritable(path, t.fsAccess)
}

// FileReadTool reads the entire content of a file.
type FileReadTool struct {
	fsAccess *config.FilesystemAccess
}

func (t *FileReadTool) Name() string { return "file_read" }
func (t *FileReadTool) Description() string {
	return "Reads the entire content of a file."
}
func (t *FileReadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to read.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *FileReadTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, ok := stringArg(args, "path")
	if !ok {
		return "", errors.New("missing or invalid 'path' argument")
	}

	hidden, err := isPathRestricted(path, t.fsAccess.Hidden)
	if err != nil {
		return "", err
	}
	if hidden {
		return "", errors.New("access denied: path '%s' is hidden", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file '%s'", path)
	}
	return string(content), nil
}

// FileEditTool replaces an exact text fragment within a file.
type FileEditTool struct {
	fsAccess *config.FilesystemAccess
}

func (t *FileEditTool) Name() string { return "file_edit" }
func (t *FileEditTool) Description() string {
	return "Edits a file by replacing an exact existing text fragment with new text. The fragment must appear exactly once."
}
func (t *FileEditTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to edit.",
			},
			"old_text": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to replace. Must occur exactly once in the file.",
			},
			"new_text": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text.",
			},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *FileEditTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, pathOk := stringArg(args, "path")
	oldText, oldOk := stringArg(args, "old_text")
	newText, newOk := stringArg(args, "new_text")
	if !pathOk || !oldOk || !newOk {
		return "", errors.New("missing or invalid 'path', 'old_text' or 'new_text' arguments")
	}
	if oldText == "" {
		return "", errors.New("'old_text' must not be empty")
	}

	if err := checkWritable(path, t.fsAccess); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file '%s'", path)
	}
	content := string(data)

	switch count := strings.Count(content, oldText); count {
	case 0:
		return "", errors.New("'old_text' not found in %s", path)
	case 1:
		// exactly one occurrence, safe to replace
	default:
		return "", errors.New("'old_text' occurs %d times in %s; provide a larger unique fragment", count, path)
	}

	content = strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write file '%s'", path)
	}
	return fmt.Sprintf("Successfully edited %s", path), nil
}

// checkWritable enforces hidden and read-only path restrictions for
// mutating file operations.
func checkWritable(path string, fsAccess *config.FilesystemAccess) error {
	hidden, err := isPathRestricted(path, fsAccess.Hidden)
	if err != nil {
		return err
	}
	if hidden {
		return errors.New("access denied: path '%s' is hidden", path)
	}

	readOnly, err := isPathRestricted(path, fsAccess.ReadOnly)
	if err != nil {
		return err
	}
	if readOnly {
		return errors.New("access denied: path '%s' is read-only", path)
	}
	return nil
}
