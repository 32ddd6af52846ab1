package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	"github.com/anupsingh-ai/justcopy-ai-ide/workspace"
)

// newMCPServer exposes the server's operations as MCP tools.
func newMCPServer(s *Server) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "justcopy",
		Version: Version,
	}, nil)

	t := &mcpTools{s: s}

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "chat",
		Description: "Ask the coding agent; files requested in the message are created in the project",
	}, t.Chat)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "generate_code",
		Description: "Generate code for a prompt using previously stored context",
	}, t.GenerateCode)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "file_operation",
		Description: "Read, write, delete or list a path under the projects root",
	}, t.FileOperation)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_files",
		Description: "List a directory under the projects root with file sizes",
	}, t.ListFiles)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_project",
		Description: "Scaffold a new project from a template (basic, python, javascript, web)",
	}, t.CreateProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List projects under the projects root",
	}, t.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "select_folder",
		Description: "Select the working folder",
	}, t.SelectFolder)

	return srv
}

type mcpTools struct {
	s *Server
}

type ChatInput struct {
	Message     string `json:"message" jsonschema:"Natural-language request for the agent"`
	ProjectPath string `json:"project_path,omitempty" jsonschema:"Project directory; relative paths resolve under the projects root"`
}

type GenerateCodeInput struct {
	Prompt   string `json:"prompt" jsonschema:"What to generate"`
	Context  string `json:"context,omitempty" jsonschema:"Optional extra context"`
	FilePath string `json:"file_path,omitempty" jsonschema:"Optional target file"`
}

type FileOperationInput struct {
	Operation string `json:"operation" jsonschema:"One of read, write, delete, list"`
	Path      string `json:"path" jsonschema:"Path relative to the projects root"`
	Content   string `json:"content,omitempty" jsonschema:"Content for write"`
}

type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema:"Directory relative to the projects root"`
}

type CreateProjectInput struct {
	Name        string `json:"name" jsonschema:"Project directory name"`
	Description string `json:"description,omitempty" jsonschema:"Optional project description"`
	Template    string `json:"template,omitempty" jsonschema:"basic, python, javascript or web"`
}

type SelectFolderInput struct {
	FolderPath string `json:"folder_path" jsonschema:"Folder to work in"`
	FileCount  int    `json:"file_count,omitempty" jsonschema:"Number of files in the folder"`
}

func (t *mcpTools) Chat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, any, error) {
	if input.Message == "" {
		return toolError("Message is required"), nil, nil
	}
	return toolJSON(t.s.engine.Chat(ctx, &justcopy.ChatRequest{
		Message:     input.Message,
		ProjectPath: input.ProjectPath,
	}))
}

func (t *mcpTools) GenerateCode(ctx context.Context, _ *mcp.CallToolRequest, input GenerateCodeInput) (*mcp.CallToolResult, any, error) {
	resp, err := t.s.engine.GenerateCode(ctx, &justcopy.CodeRequest{
		Prompt:   input.Prompt,
		Context:  input.Context,
		FilePath: input.FilePath,
	})
	if err != nil {
		return toolError("Code generation failed: %v", err), nil, nil
	}
	return toolJSON(resp)
}

func (t *mcpTools) FileOperation(ctx context.Context, _ *mcp.CallToolRequest, input FileOperationInput) (*mcp.CallToolResult, any, error) {
	resp, err := t.s.fileOperation(ctx, &justcopy.FileOperationRequest{
		Operation: input.Operation,
		Path:      input.Path,
		Content:   input.Content,
	})
	if err != nil {
		return toolError("File operation failed: %v", err), nil, nil
	}
	return toolJSON(resp)
}

func (t *mcpTools) ListFiles(_ context.Context, _ *mcp.CallToolRequest, input ListFilesInput) (*mcp.CallToolResult, any, error) {
	files, err := t.s.ws.ListFiles(input.Path)
	if err != nil {
		return toolError("Failed to list files: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"files": files})
}

func (t *mcpTools) CreateProject(_ context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, any, error) {
	resp, err := t.s.createProject(&justcopy.ProjectRequest{
		Name:        input.Name,
		Description: input.Description,
		Template:    input.Template,
	})
	if err != nil {
		return toolError("Failed to create project: %v", err), nil, nil
	}
	return toolJSON(resp)
}

func (t *mcpTools) ListProjects(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	projects, err := t.s.scaffolder.List()
	if err != nil {
		return toolError("Failed to list projects: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"projects": projects})
}

func (t *mcpTools) SelectFolder(_ context.Context, _ *mcp.CallToolRequest, input SelectFolderInput) (*mcp.CallToolResult, any, error) {
	resp, err := workspace.SelectFolder(justcopy.FolderSelectionRequest{
		FolderPath: input.FolderPath,
		FileCount:  input.FileCount,
	})
	if err != nil {
		return toolError("Failed to select folder: %v", err), nil, nil
	}
	return toolJSON(resp)
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
