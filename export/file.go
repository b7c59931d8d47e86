package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonwraymond/tylolens/lens"
)

// FileOptions configures File.
type FileOptions struct {
	// Path is the destination. Each export replaces its contents.
	Path string

	// Pretty indents the document with two spaces.
	Pretty bool
}

type fileExporter struct {
	opts FileOptions
}

// File writes each exported trace to opts.Path. The file is written to a
// temporary sibling and renamed, so readers never see a partial document.
func File(opts FileOptions) (lens.Exporter, error) {
	if opts.Path == "" {
		return nil, ErrMissingPath
	}
	return &fileExporter{opts: opts}, nil
}

func (e *fileExporter) Name() string { return "file" }

func (e *fileExporter) Export(_ context.Context, t *lens.Trace) error {
	var (
		data []byte
		err  error
	)
	if e.opts.Pretty {
		data, err = json.MarshalIndent(t, "", "  ")
	} else {
		data, err = json.Marshal(t)
	}
	if err != nil {
		return fmt.Errorf("export: encode trace: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.opts.Path), ".tylolens-*.json")
	if err != nil {
		return fmt.Errorf("export: write %s: %w", e.opts.Path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export: write %s: %w", e.opts.Path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export: write %s: %w", e.opts.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: write %s: %w", e.opts.Path, err)
	}
	if err := os.Rename(tmp.Name(), e.opts.Path); err != nil {
		return fmt.Errorf("export: write %s: %w", e.opts.Path, err)
	}
	return nil
}
