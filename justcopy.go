// Package justcopy defines the request/response types shared by the HTTP,
// WebSocket and MCP surfaces of the justcopy daemon.
// Messages are JSON-encoded.
package justcopy

import "encoding/json"

// Chat message roles understood by the inference gateway.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the conversation sent to the inference gateway.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the agentic chat endpoint.
type ChatRequest struct {
	// Message is the user's natural-language request.
	Message string `json:"message"`
	// ProjectPath is the directory file operations are applied to.
	// Relative paths resolve against the projects root; empty means the root.
	ProjectPath string `json:"project_path"`
}

// OperationCreate is the only inferred file operation kind.
const OperationCreate = "CREATE"

// InferredFileOperation is a file side effect derived from the user's message.
type InferredFileOperation struct {
	Operation   string `json:"operation"`
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
}

// ChatResponse is returned by the agentic chat endpoint.
type ChatResponse struct {
	// Response is the model's reply, or a fallback message when inference failed.
	Response string `json:"response"`
	// FileOperations lists the operations inferred from the request. Never null.
	FileOperations []InferredFileOperation `json:"file_operations"`
	// FilesModified is true when at least one operation was written to disk.
	FilesModified bool `json:"files_modified"`
}

// CodeRequest is the body of the code generation endpoint and of
// "code_request" stream messages.
type CodeRequest struct {
	Prompt   string `json:"prompt"`
	Context  string `json:"context,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// CodeResponse carries generated code and the retrieved context it used.
type CodeResponse struct {
	Code        string `json:"code"`
	ContextUsed string `json:"context_used"`
}

// File operation names accepted by the file operation endpoint.
const (
	FileRead   = "read"
	FileWrite  = "write"
	FileDelete = "delete"
	FileList   = "list"
)

// FileOperationRequest is the body of the file operation endpoint.
type FileOperationRequest struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
}

// FileEntry describes one directory entry.
type FileEntry struct {
	Name string `json:"name"`
	// Type is "file" or "directory".
	Type string `json:"type"`
	Path string `json:"path"`
	// Size is reported by the files listing endpoint; directories report 0.
	Size *int64 `json:"size,omitempty"`
}

// ProjectRequest is the body of the project creation endpoint.
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Template is one of "basic", "python", "javascript" or "web".
	Template string `json:"template,omitempty"`
}

// ProjectInfo describes an existing project directory.
type ProjectInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template,omitempty"`
}

// FolderSelectionRequest is sent when the user picks a working folder.
type FolderSelectionRequest struct {
	FolderPath string `json:"folder_path"`
	FileCount  int    `json:"file_count"`
}

// FolderSelectionResponse acknowledges a folder selection.
type FolderSelectionResponse struct {
	Message    string `json:"message"`
	FolderPath string `json:"folder_path"`
	Success    bool   `json:"success"`
}

// Stream message types exchanged over the real-time channel.
const (
	StreamPing         = "ping"
	StreamPong         = "pong"
	StreamCodeRequest  = "code_request"
	StreamCodeResponse = "code_response"
	StreamError        = "error"
)

// StreamMessage is one frame on the real-time channel.
type StreamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Error describes a failure returned to a client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "not_found", "invalid_request").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ErrorResponse wraps an Error for HTTP responses.
type ErrorResponse struct {
	Error *Error `json:"error"`
}
