// Package generate orchestrates context retrieval, prompt assembly and model
// inference for agentic chat and code generation.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	"github.com/anupsingh-ai/justcopy-ai-ide/index"
	"github.com/anupsingh-ai/justcopy-ai-ide/workspace"
)

// FallbackMessage is returned by Chat when the inference server fails.
const FallbackMessage = "I understand you want to work on your code. However, the AI service is currently unavailable. Please try again later or check the service status."

// ErrEmptyPrompt is returned by GenerateCode for a blank prompt.
var ErrEmptyPrompt = errors.New("prompt is required")

// EngineConfig holds the tunables of an Engine.
type EngineConfig struct {
	ProjectsRoot string
	MaxResults   int
	Chat         Options
	Code         Options
	// Classifier defaults to KeywordClassifier.
	Classifier Classifier
}

// DefaultEngineConfig returns the stock chat and code generation settings.
func DefaultEngineConfig(projectsRoot string) EngineConfig {
	return EngineConfig{
		ProjectsRoot: projectsRoot,
		MaxResults:   5,
		Chat:         Options{Temperature: 0.7, MaxTokens: 2048, Timeout: 60 * time.Second},
		Code:         Options{Temperature: 0.3, MaxTokens: 4096, Timeout: 120 * time.Second},
	}
}

// EngineConfigFrom builds an EngineConfig from the daemon configuration.
func EngineConfigFrom(cfg *justcopy.Config) EngineConfig {
	return EngineConfig{
		ProjectsRoot: justcopy.ResolveProjectsDir(cfg),
		MaxResults:   cfg.Retrieval.MaxResults,
		Chat: Options{
			Temperature: cfg.Generation.ChatTemperature,
			MaxTokens:   cfg.Generation.ChatMaxTokens,
			Timeout:     cfg.Generation.ChatTimeout(),
		},
		Code: Options{
			Temperature: cfg.Generation.CodeTemperature,
			MaxTokens:   cfg.Generation.CodeMaxTokens,
			Timeout:     cfg.Generation.CodeTimeout(),
		},
	}
}

// Engine runs the agentic chat and code generation pipelines.
type Engine struct {
	cfg       EngineConfig
	store     Store
	completer Completer
	assembler *Assembler
	gatherer  *Gatherer
	executor  *Executor
	projects  *ProjectCache
}

// NewEngine wires an engine from shared handles.
func NewEngine(cfg EngineConfig, store Store, completer Completer, assembler *Assembler, projects *ProjectCache) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		completer: completer,
		assembler: assembler,
		gatherer:  NewGatherer(store, projects, cfg.Classifier, cfg.MaxResults),
		executor:  NewExecutor(projects.InvalidatePath),
		projects:  projects,
	}
}

// ProjectDir maps a chat project_path onto a directory. Absolute paths are
// used as given, relative paths resolve under the projects root, and an
// empty path means the projects root.
func (e *Engine) ProjectDir(projectPath string) (string, error) {
	if workspace.HasTraversal(projectPath) {
		return "", fmt.Errorf("%w: %q", workspace.ErrInvalidPath, projectPath)
	}
	switch {
	case projectPath == "":
		return filepath.Clean(e.cfg.ProjectsRoot), nil
	case filepath.IsAbs(projectPath):
		return filepath.Clean(projectPath), nil
	default:
		return filepath.Join(e.cfg.ProjectsRoot, projectPath), nil
	}
}

// Chat answers a message and writes any files the message asks for.
// It never fails: problems are reported in the response text.
func (e *Engine) Chat(ctx context.Context, req *justcopy.ChatRequest) *justcopy.ChatResponse {
	projectDir, err := e.ProjectDir(req.ProjectPath)
	if err != nil {
		return errorResponse(err)
	}

	info := e.gatherer.Gather(ctx, req.Message, projectDir)
	slog.Debug("chat context gathered",
		"intent", info.Intent,
		"retrieved", len(info.Retrieved.Documents),
		"degraded", info.Retrieved.Degraded,
		"project", projectDir,
	)

	shownPath := req.ProjectPath
	if shownPath == "" {
		shownPath = projectDir
	}
	preamble := e.assembler.AgentPreamble(AgentPromptData{
		ProjectPath:      shownPath,
		ProjectStructure: info.Project.Structure,
		Manifests:        info.Project.Manifests,
	})
	messages := e.assembler.Assemble(preamble, req.Message, info.Retrieved.Texts(), "")

	output, err := e.completer.Complete(ctx, messages, e.cfg.Chat)
	if err != nil {
		slog.Warn("chat inference failed", "error", err)
		return &justcopy.ChatResponse{
			Response:       FallbackMessage,
			FileOperations: []justcopy.InferredFileOperation{},
		}
	}

	ops := ExtractFileOperations(info.Intent, output, req.Message)
	modified := false
	if len(ops) > 0 {
		modified, err = e.executor.Execute(ops, projectDir)
		if err != nil {
			slog.Error("error executing file operations", "project", projectDir, "error", err)
			modified = false
		}
	}

	return &justcopy.ChatResponse{
		Response:       output,
		FileOperations: ops,
		FilesModified:  modified,
	}
}

func errorResponse(err error) *justcopy.ChatResponse {
	slog.Error("chat error", "error", err)
	return &justcopy.ChatResponse{
		Response:       fmt.Sprintf("I encountered an error while processing your request: %v. Please try again or rephrase your request.", err),
		FileOperations: []justcopy.InferredFileOperation{},
	}
}

// GenerateCode produces code for a prompt using retrieved context, then
// stores the prompt and result for future retrieval.
func (e *Engine) GenerateCode(ctx context.Context, req *justcopy.CodeRequest) (*justcopy.CodeResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	res := e.gatherer.Retrieve(ctx, req.Prompt)
	retrieved := res.Texts()

	var extra []string
	if req.Context != "" {
		extra = append(extra, req.Context)
	}
	if req.FilePath != "" {
		extra = append(extra, "Target file: "+req.FilePath)
	}

	messages := e.assembler.Assemble(e.assembler.CodePreamble(), req.Prompt, retrieved, strings.Join(extra, "\n\n"))

	code, err := e.completer.Complete(ctx, messages, e.cfg.Code)
	if err != nil {
		slog.Error("code generation error", "error", err)
		return nil, err
	}

	document := fmt.Sprintf("Prompt: %s\n\nCode:\n%s", req.Prompt, code)
	if _, err := e.store.Index(ctx, document); err != nil {
		slog.Warn("context storage error", "error", err)
	}

	return &justcopy.CodeResponse{
		Code:        code,
		ContextUsed: strings.Join(retrieved, "\n\n"),
	}, nil
}

// StoreFile indexes written file content, with secrets redacted, for
// future retrieval.
func (e *Engine) StoreFile(ctx context.Context, path, content string) error {
	document := "File: " + path + "\n\n" + index.RedactDocument(path, content)
	if _, err := e.store.Index(ctx, document); err != nil {
		slog.Warn("context storage error", "path", path, "error", err)
		return err
	}
	return nil
}

// Invalidate drops cached project context for every project containing path.
func (e *Engine) Invalidate(path string) {
	e.projects.InvalidatePath(path)
}
