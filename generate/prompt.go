package generate

import (
	"log/slog"
	"os"
	"strings"
	"text/template"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	defaults "github.com/anupsingh-ai/justcopy-ai-ide/default"
)

// AgentPromptData is passed to the agent preamble template.
type AgentPromptData struct {
	ProjectPath      string
	ProjectStructure string
	Manifests        []string
}

var promptFuncs = template.FuncMap{
	"bullet": func(items []string) string {
		if len(items) == 0 {
			return ""
		}
		var sb strings.Builder
		for _, item := range items {
			sb.WriteString("- ")
			sb.WriteString(item)
			sb.WriteString("\n")
		}
		return strings.TrimSuffix(sb.String(), "\n")
	},
}

// Assembler builds the message lists sent to the inference server.
type Assembler struct {
	agentPrompt string
	codePrompt  string
}

// NewAssembler returns an assembler using the prompt templates at agentPath
// and codePath when they exist, and the built-in templates otherwise.
func NewAssembler(agentPath, codePath string) *Assembler {
	return &Assembler{
		agentPrompt: loadCustomPrompt(agentPath),
		codePrompt:  loadCustomPrompt(codePath),
	}
}

// loadCustomPrompt returns the file content, or empty when it does not exist.
func loadCustomPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", path)
	return string(data)
}

// AgentPreamble renders the system prompt for agentic chat.
func (a *Assembler) AgentPreamble(data AgentPromptData) string {
	return render("agent", a.agentPrompt, defaults.AgentPrompt, data)
}

// CodePreamble renders the system prompt for code generation.
func (a *Assembler) CodePreamble() string {
	return render("code", a.codePrompt, defaults.CodePrompt, nil)
}

// render executes custom, falling back to builtin when custom is empty or broken.
func render(name, custom, builtin string, data any) string {
	src := custom
	if src == "" {
		src = builtin
	}

	t, err := template.New(name).Funcs(promptFuncs).Parse(src)
	if err != nil {
		slog.Warn("failed to parse prompt template, falling back to default", "prompt", name, "error", err)
		t = template.Must(template.New(name).Funcs(promptFuncs).Parse(builtin))
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Warn("failed to execute prompt template, falling back to default", "prompt", name, "error", err)
		buf.Reset()
		template.Must(template.New(name).Funcs(promptFuncs).Parse(builtin)).Execute(&buf, data)
	}

	return strings.TrimRight(buf.String(), " \t\n")
}

// Assemble returns the system preamble followed by the user request, with
// retrieved context prepended in retrieval order. A non-empty additional
// string becomes a second user message.
func (a *Assembler) Assemble(preamble, request string, retrieved []string, additional string) []justcopy.ChatMessage {
	var user string
	if len(retrieved) > 0 {
		user = "Context: " + strings.Join(retrieved, "\n\n") + "\n\nRequest: " + request
	} else {
		user = "Request: " + request
	}

	messages := []justcopy.ChatMessage{
		{Role: justcopy.RoleSystem, Content: preamble},
		{Role: justcopy.RoleUser, Content: user},
	}
	if additional != "" {
		messages = append(messages, justcopy.ChatMessage{Role: justcopy.RoleUser, Content: "Additional context: " + additional})
	}
	return messages
}
