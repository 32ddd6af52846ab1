package generate

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	defaults "github.com/anupsingh-ai/justcopy-ai-ide/default"
	"github.com/anupsingh-ai/justcopy-ai-ide/workspace"
)

// ErrExecute is returned when a batch of file operations fails.
var ErrExecute = errors.New("file operation failed")

var boilerplateByExt = map[string]string{
	".py":   "py.tmpl",
	".js":   "js.tmpl",
	".jsx":  "js.tmpl",
	".html": "html.tmpl",
	".css":  "css.tmpl",
}

// Executor writes inferred file operations to disk using the embedded
// per-extension boilerplate.
type Executor struct {
	tmpl *template.Template
	// onWrite is called with the project root after a successful batch.
	onWrite func(projectRoot string)
}

// NewExecutor returns an executor. onWrite may be nil.
func NewExecutor(onWrite func(projectRoot string)) *Executor {
	sub, err := fs.Sub(defaults.Templates, "files")
	if err != nil {
		panic("generate: missing embedded file templates: " + err.Error())
	}
	return &Executor{
		tmpl:    template.Must(template.ParseFS(sub, "*.tmpl")),
		onWrite: onWrite,
	}
}

// Boilerplate renders the starter content for a file.
func (x *Executor) Boilerplate(filePath, description string) (string, error) {
	fileName := strings.ToLower(filepath.Base(filePath))
	name, ok := boilerplateByExt[filepath.Ext(fileName)]
	if !ok {
		name = "txt.tmpl"
	}

	var buf bytes.Buffer
	data := struct{ FileName, Description string }{fileName, description}
	if err := x.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Execute creates every operation's file under projectRoot. It reports
// whether at least one file was written. Any failure aborts the batch.
func (x *Executor) Execute(ops []justcopy.InferredFileOperation, projectRoot string) (bool, error) {
	if len(ops) == 0 {
		return false, nil
	}
	if projectRoot == "" || workspace.HasTraversal(projectRoot) {
		return false, fmt.Errorf("%w: invalid project path %q", ErrExecute, projectRoot)
	}
	if err := os.MkdirAll(projectRoot, 0755); err != nil {
		return false, fmt.Errorf("%w: %v", ErrExecute, err)
	}

	written := 0
	for _, op := range ops {
		if op.Operation != justcopy.OperationCreate {
			slog.Debug("skipping unsupported inferred operation", "operation", op.Operation, "path", op.FilePath)
			continue
		}
		if op.FilePath == "" || filepath.IsAbs(op.FilePath) || workspace.HasTraversal(op.FilePath) {
			return false, fmt.Errorf("%w: invalid file path %q", ErrExecute, op.FilePath)
		}

		content, err := x.Boilerplate(op.FilePath, op.Description)
		if err != nil {
			return false, fmt.Errorf("%w: render %s: %v", ErrExecute, op.FilePath, err)
		}

		target := filepath.Join(projectRoot, filepath.FromSlash(op.FilePath))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return false, fmt.Errorf("%w: %v", ErrExecute, err)
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return false, fmt.Errorf("%w: %v", ErrExecute, err)
		}
		slog.Info("created file", "path", target)
		written++
	}

	if written > 0 && x.onWrite != nil {
		x.onWrite(projectRoot)
	}
	return written > 0, nil
}
