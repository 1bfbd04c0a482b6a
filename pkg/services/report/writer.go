package report

import (
	"context"
	"fmt"
	"io"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/rs/zerolog"
)

// AtomicWriter is the part of the upload directory the writer needs.
type AtomicWriter interface {
	WriteAtomic(name string, fn func(w io.Writer) error) error
}

// Writer stores the HTML and JSON renditions of a report next to the upload.
type Writer struct {
	dir  AtomicWriter
	html Renderer
	json Renderer
}

func NewWriter(dir AtomicWriter, html, json Renderer) *Writer {
	return &Writer{dir: dir, html: html, json: json}
}

// NewDefaultWriter wires the embedded HTML template and the JSON renderer.
func NewDefaultWriter(dir AtomicWriter, version string) (*Writer, error) {
	html, err := NewHTMLRenderer(version)
	if err != nil {
		return nil, err
	}
	return NewWriter(dir, html, NewJSONRenderer(version)), nil
}

// Write renders the HTML report first, then the JSON one. Each file appears
// only once complete.
func (w *Writer) Write(ctx context.Context, rep *domain.Report, htmlName, jsonName string) error {
	logger := zerolog.Ctx(ctx)

	targets := []struct {
		name     string
		renderer Renderer
	}{
		{htmlName, w.html},
		{jsonName, w.json},
	}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.dir.WriteAtomic(t.name, func(out io.Writer) error {
			return t.renderer.Render(out, rep)
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
		logger.Debug().Str("file", t.name).Msg("report written")
	}
	return nil
}
