// Package workspace performs file and project operations confined to the
// projects root directory.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

var (
	// ErrInvalidPath is returned for empty paths and paths with a ".." segment.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidOperation is returned for unknown file operations.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrNotFound is returned when reading a file that does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrNotDirectory is returned when listing something that is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")
)

// Workspace is a projects root on disk. Every path it accepts is relative
// to Root.
type Workspace struct {
	root string
}

// New returns a workspace rooted at root.
func New(root string) *Workspace {
	return &Workspace{root: filepath.Clean(root)}
}

// Root returns the projects root directory.
func (w *Workspace) Root() string { return w.root }

// HasTraversal reports whether p contains a ".." path segment.
func HasTraversal(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Resolve maps a client path onto the filesystem. A leading "/" is ignored.
func (w *Workspace) Resolve(p string) (string, error) {
	if HasTraversal(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	rel := strings.TrimLeft(filepath.ToSlash(p), "/")
	return filepath.Join(w.root, filepath.FromSlash(rel)), nil
}

// rel returns abs relative to the root, using forward slashes.
func (w *Workspace) rel(abs string) string {
	r, err := filepath.Rel(w.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(r)
}

// Read returns the content of the file at p.
func (w *Workspace) Read(p string) (string, error) {
	abs, err := w.Resolve(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return "", err
	}
	return string(data), nil
}

// Write replaces the file at p with content, creating parent directories.
func (w *Workspace) Write(p, content string) error {
	abs, err := w.Resolve(p)
	if err != nil {
		return err
	}
	if abs == w.root {
		return fmt.Errorf("%w: cannot write to the projects root", ErrInvalidPath)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return err
	}
	slog.Debug("file written", "path", w.rel(abs), "bytes", len(content))
	return nil
}

// Delete removes the file at p. Deleting a missing file succeeds.
func (w *Workspace) Delete(p string) error {
	abs, err := w.Resolve(p)
	if err != nil {
		return err
	}
	if abs == w.root {
		return fmt.Errorf("%w: cannot delete the projects root", ErrInvalidPath)
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the entries of the directory at p, without sizes.
func (w *Workspace) List(p string) ([]justcopy.FileEntry, error) {
	abs, err := w.Resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, p)
	}
	return w.entries(abs, false)
}

// ListFiles returns the entries of the directory at p with file sizes.
// A missing directory is created and reported as empty.
func (w *Workspace) ListFiles(p string) ([]justcopy.FileEntry, error) {
	abs, err := w.Resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, err
		}
		return []justcopy.FileEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, p)
	}
	return w.entries(abs, true)
}

func (w *Workspace) entries(abs string, withSize bool) ([]justcopy.FileEntry, error) {
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	out := make([]justcopy.FileEntry, 0, len(dirents))
	for _, d := range dirents {
		entry := justcopy.FileEntry{
			Name: d.Name(),
			Type: "file",
			Path: w.rel(filepath.Join(abs, d.Name())),
		}
		if d.IsDir() {
			entry.Type = "directory"
		}
		if withSize {
			var size int64
			if !d.IsDir() {
				if info, err := d.Info(); err == nil {
					size = info.Size()
				}
			}
			entry.Size = &size
		}
		out = append(out, entry)
	}
	return out, nil
}

// SelectFolder acknowledges the folder a client picked to work in. Any
// path containing ".." is refused, even inside a name.
func SelectFolder(req justcopy.FolderSelectionRequest) (*justcopy.FolderSelectionResponse, error) {
	if req.FolderPath == "" || strings.Contains(req.FolderPath, "..") {
		return nil, fmt.Errorf("%w: invalid folder path", ErrInvalidPath)
	}

	slog.Info("folder selected", "path", req.FolderPath, "files", req.FileCount)

	var msg string
	if req.FileCount > 0 {
		msg = fmt.Sprintf("Great! I've selected the folder '%s' with %d files. I'm ready to help you work with your code!", req.FolderPath, req.FileCount)
	} else {
		msg = fmt.Sprintf("Folder '%s' selected. I'm ready to help you create new files and projects in this directory!", req.FolderPath)
	}
	return &justcopy.FolderSelectionResponse{
		Message:    msg,
		FolderPath: req.FolderPath,
		Success:    true,
	}, nil
}
