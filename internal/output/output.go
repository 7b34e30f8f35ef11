// Package output delivers rendered text to its destination, optionally
// converting it from Markdown to HTML first.
package output

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// Stdout names standard output as a destination.
const Stdout = "-"

// Writer sends rendered text to a file or to an io.Writer.
type Writer struct {
	path   string
	stdout io.Writer
	md     goldmark.Markdown
}

// New returns a Writer for path. An empty path or "-" selects standard
// output. With markdown set, text is converted to HTML before writing.
func New(path string, markdown bool) *Writer {
	w := &Writer{path: path, stdout: os.Stdout}
	if markdown {
		w.md = newMarkdown()
	}
	return w
}

// NewTo returns a Writer that always writes to out.
func NewTo(out io.Writer, markdown bool) *Writer {
	w := New(Stdout, markdown)
	w.stdout = out
	return w
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		// templates produce trusted HTML alongside the Markdown
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

// Path returns the destination path, or "-" for standard output.
func (w *Writer) Path() string {
	if w.toStdout() {
		return Stdout
	}
	return w.path
}

// Markdown reports whether text is converted before writing.
func (w *Writer) Markdown() bool { return w.md != nil }

func (w *Writer) toStdout() bool { return w.path == "" || w.path == Stdout }

// Write delivers text. File destinations are replaced atomically: the text
// goes to a temporary file in the same directory which is then renamed over
// the destination.
func (w *Writer) Write(text string) error {
	data := []byte(text)
	if w.md != nil {
		var buf bytes.Buffer
		if err := w.md.Convert(data, &buf); err != nil {
			return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot convert Markdown")
		}
		data = buf.Bytes()
	}

	if w.toStdout() {
		if _, err := w.stdout.Write(data); err != nil {
			return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot write output")
		}
		return nil
	}
	return writeFile(w.path, data)
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot create directory "+dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot create temporary file in "+dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot write "+path)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot write "+path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot write "+path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot replace "+path)
	}
	return nil
}

// ToHTML converts Markdown text to HTML.
func ToHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := newMarkdown().Convert([]byte(text), &buf); err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeInternalError, "cannot convert Markdown")
	}
	return buf.String(), nil
}
