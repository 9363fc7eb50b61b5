package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSink writes diagnostics into a local directory, logs/ by default.
type LocalSink struct {
	dir string
}

// NewLocalSink returns a sink rooted at dir. The directory is created on
// first write.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

// Dir returns the sink's root directory.
func (s *LocalSink) Dir() string {
	return s.dir
}

// Save writes data to dir/name. contentType is ignored.
func (s *LocalSink) Save(ctx context.Context, name string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create diagnostics dir: %w", err)
	}
	target := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}
