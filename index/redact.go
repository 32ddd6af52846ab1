package index

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are environment variables that are not secrets and help retrieval.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"PYTHONPATH": true, "NODE_ENV": true, "PORT": true, "HOST": true,
	"DEBUG": true, "LOG_LEVEL": true, "GOPATH": true, "GOFLAGS": true,
}

// specialParams are shell special parameters that should not be redacted.
var specialParams = map[string]bool{
	"?": true, "!": true, "#": true, "@": true, "*": true,
	"-": true, "$": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
}

var shellExts = map[string]bool{".sh": true, ".bash": true, ".zsh": true}

// RedactDocument strips secrets from file content before it is indexed.
// Shell scripts are rewritten through the shell AST; dotenv files have their
// values masked. Other content is returned unchanged.
func RedactDocument(path, content string) string {
	base := filepath.Base(path)
	switch {
	case shellExts[strings.ToLower(filepath.Ext(base))]:
		return RedactShell(content)
	case base == ".env" || strings.HasPrefix(base, ".env.") || strings.HasSuffix(base, ".env"):
		return redactDotenv(content)
	default:
		return content
	}
}

// RedactShell replaces sensitive variable expansions and assignment values
// in a shell script. Safe variables and special parameters are kept.
func RedactShell(script string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		return regexRedact(script)
	}

	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !safeVars[n.Param.Value] && !specialParams[n.Param.Value] {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && !safeVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
			}
		}
		return true
	})

	var buf bytes.Buffer
	printer := syntax.NewPrinter(syntax.Indent(0))
	if err := printer.Print(&buf, prog); err != nil {
		return regexRedact(script)
	}
	return strings.TrimRight(buf.String(), "\n")
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
)

// regexRedact is a fallback for scripts that fail to parse.
func regexRedact(script string) string {
	script = reBraceVar.ReplaceAllStringFunc(script, func(m string) string {
		name := reBraceVar.FindStringSubmatch(m)[1]
		if safeVars[name] || specialParams[name] {
			return m
		}
		return "${REDACTED}"
	})

	script = reSimpleVar.ReplaceAllStringFunc(script, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || safeVars[name] || specialParams[name] {
			return m
		}
		return "$REDACTED"
	})

	return reAssign.ReplaceAllStringFunc(script, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return name + "=***"
	})
}

// redactDotenv masks every KEY=value line except safe keys. Comments and
// blank lines are preserved.
func redactDotenv(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		key, _, ok := strings.Cut(strings.TrimPrefix(trimmed, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || safeVars[key] {
			out = append(out, line)
			continue
		}
		out = append(out, key+"=***")
	}
	return strings.Join(out, "\n")
}
