package generate

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// manifestLimit caps each manifest summary.
const manifestLimit = 512

// manifestParser summarizes one kind of project manifest. parse returns ""
// when the file holds nothing worth reporting.
type manifestParser struct {
	file  string
	label string
	parse func(data []byte) string
}

var manifestParsers = []manifestParser{
	{"package.json", "package.json scripts", npmScripts},
	{"pyproject.toml", "pyproject.toml", pyprojectSummary},
	{"requirements.txt", "requirements", requirementsSummary},
	{"Cargo.toml", "Cargo.toml", cargoSummary},
	{"go.mod", "go.mod", goModSummary},
	{"Makefile", "Makefile targets", makeTargets},
}

// lockfiles maps a lockfile to its package manager, most specific first.
var lockfiles = []struct{ name, manager string }{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"package-lock.json", "npm"},
	{"poetry.lock", "poetry"},
	{"uv.lock", "uv"},
	{"Cargo.lock", "cargo"},
}

// gatherManifests returns "label: summary" lines for the manifests in dir,
// followed by the detected package manager.
func gatherManifests(dir string) []string {
	var out []string
	for _, m := range manifestParsers {
		data, err := os.ReadFile(filepath.Join(dir, m.file))
		if err != nil {
			continue
		}
		if summary := m.parse(data); summary != "" {
			out = append(out, m.label+": "+clip(summary, manifestLimit))
		}
	}
	for _, lf := range lockfiles {
		if _, err := os.Stat(filepath.Join(dir, lf.name)); err == nil {
			out = append(out, "package manager: "+lf.manager)
			break
		}
	}
	return out
}

func npmScripts(data []byte) string {
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return ""
	}
	var parts []string
	for _, name := range slices.Sorted(maps.Keys(pkg.Scripts)) {
		parts = append(parts, name+": "+pkg.Scripts[name])
	}
	return strings.Join(parts, ", ")
}

func pyprojectSummary(data []byte) string {
	var py struct {
		Project struct {
			Name         string   `toml:"name"`
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if toml.Unmarshal(data, &py) != nil {
		return ""
	}
	var parts []string
	if py.Project.Name != "" {
		parts = append(parts, fmt.Sprintf("name = %q", py.Project.Name))
	}
	if len(py.Project.Dependencies) > 0 {
		parts = append(parts, "dependencies = "+strings.Join(py.Project.Dependencies, " "))
	}
	return strings.Join(parts, ", ")
}

func cargoSummary(data []byte) string {
	var cargo struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
		Bin []struct {
			Name string `toml:"name"`
		} `toml:"bin"`
	}
	if toml.Unmarshal(data, &cargo) != nil {
		return ""
	}
	var parts []string
	if cargo.Package.Name != "" {
		parts = append(parts, fmt.Sprintf("name = %q", cargo.Package.Name))
	}
	for _, b := range cargo.Bin {
		if b.Name != "" {
			parts = append(parts, fmt.Sprintf("bin = %q", b.Name))
		}
	}
	return strings.Join(parts, ", ")
}

// requirementsSummary lists requirement specifiers, skipping comments.
func requirementsSummary(data []byte) string {
	var reqs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			reqs = append(reqs, line)
		}
	}
	return strings.Join(reqs, " ")
}

// goModSummary reports the module path and go directive.
func goModSummary(data []byte) string {
	var parts []string
	for _, line := range strings.Split(string(data), "\n") {
		f := strings.Fields(line)
		if len(f) == 2 && (f[0] == "module" || f[0] == "go") {
			parts = append(parts, f[0]+" "+f[1])
		}
	}
	return strings.Join(parts, ", ")
}

// makeTargets lists explicit rule names in file order. Recipes, comments,
// special targets, variable assignments and pattern rules are skipped.
func makeTargets(data []byte) string {
	var targets []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.ContainsRune("\t#.", rune(line[0])) {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if !ok || strings.HasPrefix(rest, "=") {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, "$% =") || slices.Contains(targets, name) {
			continue
		}
		targets = append(targets, name)
	}
	return strings.Join(targets, ", ")
}

// clip shortens s to at most n bytes, marking the cut with "...".
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
