package workspace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	defaults "github.com/anupsingh-ai/justcopy-ai-ide/default"
)

// ErrProjectExists is returned when creating a project whose directory exists.
var ErrProjectExists = errors.New("project already exists")

// MetadataFile is written at the root of every scaffolded project.
const MetadataFile = ".justcopy.yaml"

// Project templates.
const (
	TemplateBasic      = "basic"
	TemplatePython     = "python"
	TemplateJavaScript = "javascript"
	TemplateWeb        = "web"
)

// Metadata is the content of MetadataFile.
type Metadata struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Template    string    `yaml:"template"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// projectData is passed to the scaffold templates.
type projectData struct {
	Name        string
	Description string
}

type scaffoldFile struct {
	path string
	tmpl string
}

var templateFiles = map[string][]scaffoldFile{
	TemplateBasic: nil,
	TemplatePython: {
		{"requirements.txt", "requirements.txt.tmpl"},
		{"src/main.py", "main.py.tmpl"},
	},
	TemplateJavaScript: {
		{"src/index.js", "index.js.tmpl"},
	},
	TemplateWeb: {
		{"src/index.html", "index.html.tmpl"},
		{"src/styles.css", "styles.css.tmpl"},
		{"src/script.js", "script.js.tmpl"},
	},
}

// Scaffolder creates projects from the embedded templates.
type Scaffolder struct {
	ws   *Workspace
	tmpl *template.Template
}

// NewScaffolder returns a scaffolder creating projects under ws.
func NewScaffolder(ws *Workspace) *Scaffolder {
	sub, err := fs.Sub(defaults.Templates, "scaffold")
	if err != nil {
		panic("workspace: missing embedded scaffold templates: " + err.Error())
	}
	return &Scaffolder{
		ws:   ws,
		tmpl: template.Must(template.ParseFS(sub, "*.tmpl")),
	}
}

// Create scaffolds a project and returns its directory. Unknown templates
// fall back to basic.
func (s *Scaffolder) Create(req justcopy.ProjectRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || HasTraversal(name) {
		return "", fmt.Errorf("%w: project name %q", ErrInvalidPath, req.Name)
	}

	tmplName := req.Template
	if _, ok := templateFiles[tmplName]; !ok {
		tmplName = TemplateBasic
	}

	dir := filepath.Join(s.ws.Root(), name)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrProjectExists, name)
	}
	if err := os.MkdirAll(s.ws.Root(), 0755); err != nil {
		return "", err
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrProjectExists, name)
		}
		return "", err
	}

	data := projectData{Name: name, Description: req.Description}
	if err := s.scaffold(dir, tmplName, data); err != nil {
		return "", fmt.Errorf("scaffold %s: %w", name, err)
	}

	meta := Metadata{Name: name, Description: req.Description, Template: tmplName, CreatedAt: time.Now().UTC()}
	out, err := yaml.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), out, 0644); err != nil {
		return "", err
	}

	slog.Info("project created", "name", name, "template", tmplName)
	return dir, nil
}

func (s *Scaffolder) scaffold(dir, tmplName string, data projectData) error {
	for _, sub := range []string{"src", "docs", "tests"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return err
		}
	}

	files := append([]scaffoldFile{{"README.md", "README.md.tmpl"}}, templateFiles[tmplName]...)
	for _, f := range files {
		var buf bytes.Buffer
		if err := s.tmpl.ExecuteTemplate(&buf, f.tmpl, data); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(f.path)), buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	if tmplName == TemplateJavaScript {
		return writePackageJSON(dir, data)
	}
	return nil
}

func writePackageJSON(dir string, data projectData) error {
	pkg := struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Description string            `json:"description"`
		Main        string            `json:"main"`
		Scripts     map[string]string `json:"scripts"`
	}{
		Name:        strings.ReplaceAll(strings.ToLower(data.Name), " ", "-"),
		Version:     "1.0.0",
		Description: data.Description,
		Main:        "src/index.js",
		Scripts: map[string]string{
			"start": "node src/index.js",
			"test":  `echo "Error: no test specified" && exit 1`,
		},
	}
	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "package.json"), append(out, '\n'), 0644)
}

// List returns every project directory under the root, sorted by name.
func (s *Scaffolder) List() ([]justcopy.ProjectInfo, error) {
	dirents, err := os.ReadDir(s.ws.Root())
	if errors.Is(err, fs.ErrNotExist) {
		return []justcopy.ProjectInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	projects := make([]justcopy.ProjectInfo, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		info := justcopy.ProjectInfo{Name: d.Name(), Path: d.Name()}
		if meta, err := readMetadata(filepath.Join(s.ws.Root(), d.Name())); err == nil {
			info.Description = meta.Description
			info.Template = meta.Template
		}
		projects = append(projects, info)
	}
	return projects, nil
}

func readMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		slog.Warn("invalid project metadata", "dir", dir, "error", err)
		return nil, err
	}
	return &meta, nil
}
