package pipeline

import (
	"context"
	"os"
	"path/filepath"
)

// Sink receives the rendered document after every answered question.
type Sink interface {
	Persist(ctx context.Context, content string) error
}

// FileSink writes the document to a fixed path and syncs it to disk,
// so an interrupted run keeps every answer persisted before the crash.
type FileSink struct {
	path string
}

// NewFileSink returns a sink writing to the given path. The parent
// directory is created on first persist.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the sink's target path.
func (f *FileSink) Path() string { return f.path }

func (f *FileSink) Persist(_ context.Context, content string) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
