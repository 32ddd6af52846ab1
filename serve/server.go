package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	"github.com/anupsingh-ai/justcopy-ai-ide/generate"
	"github.com/anupsingh-ai/justcopy-ai-ide/workspace"
)

// Engine runs chat and code generation and indexes written files.
type Engine interface {
	Chat(ctx context.Context, req *justcopy.ChatRequest) *justcopy.ChatResponse
	GenerateCode(ctx context.Context, req *justcopy.CodeRequest) (*justcopy.CodeResponse, error)
	StoreFile(ctx context.Context, path, content string) error
	Invalidate(path string)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Service names reported by the health endpoint.
const (
	ServiceEmbedding = "embedding"
	ServiceVectorDB  = "vector_db"
	ServiceInference = "inference"
)

const (
	healthTimeout = 5 * time.Second
	maxBodyBytes  = 10 << 20
)

// Options configures a Server.
type Options struct {
	Engine    Engine
	Workspace *workspace.Workspace
	// StaticDir is served at / and /static/ when it exists.
	StaticDir      string
	AllowedOrigins []string
	Health         map[string]HealthCheck
	// Config is reported by /api/config with secrets masked. May be nil.
	Config *justcopy.Config
}

// Server exposes the engine and workspace over HTTP and WebSocket.
type Server struct {
	engine     Engine
	ws         *workspace.Workspace
	scaffolder *workspace.Scaffolder
	health     map[string]HealthCheck
	staticDir  string
	origins    []string
	cfg        *justcopy.Config
	upgrader   websocket.Upgrader
	mux        *http.ServeMux
}

// NewServer registers every route on a fresh mux.
func NewServer(opts Options) *Server {
	s := &Server{
		engine:     opts.Engine,
		ws:         opts.Workspace,
		scaffolder: workspace.NewScaffolder(opts.Workspace),
		health:     opts.Health,
		staticDir:  opts.StaticDir,
		origins:    opts.AllowedOrigins,
		cfg:        opts.Config,
		mux:        http.NewServeMux(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/config", s.handleConfig)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/code/generate", s.handleGenerateCode)
	s.mux.HandleFunc("POST /api/files/operation", s.handleFileOperation)
	s.mux.HandleFunc("GET /api/files/list", s.handleListFiles)
	s.mux.HandleFunc("POST /api/projects/create", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects/list", s.handleListProjects)
	s.mux.HandleFunc("POST /api/folder/select", s.handleSelectFolder)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.registerStatic()

	return s
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return withRequestID(withLogging(withRecover(withCORS(s.origins, s.mux))))
}

func (s *Server) registerStatic() {
	if s.staticDir == "" {
		return
	}
	info, err := os.Stat(s.staticDir)
	if err != nil || !info.IsDir() {
		slog.Debug("static directory not found, UI disabled", "path", s.staticDir)
		return
	}
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, justcopy.ErrorResponse{Error: &justcopy.Error{Code: code, Message: message}})
}

// classify maps an error onto an HTTP status and machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workspace.ErrProjectExists):
		return http.StatusBadRequest, "project_exists"
	case errors.Is(err, workspace.ErrInvalidPath),
		errors.Is(err, workspace.ErrInvalidOperation),
		errors.Is(err, workspace.ErrNotDirectory),
		errors.Is(err, generate.ErrEmptyPrompt):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, generate.ErrInferenceUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "error", err)
	}
	writeError(w, status, code, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status: "healthy",
		Services: map[string]bool{
			ServiceEmbedding: false,
			ServiceVectorDB:  false,
			ServiceInference: false,
		},
	}
	for name, check := range s.health {
		err := check(ctx)
		if err != nil {
			slog.Debug("health check failed", "service", name, "error", err)
		}
		resp.Services[name] = err == nil
	}
	writeJSON(w, http.StatusOK, resp)
}

type configResponse struct {
	Config   *justcopy.Config `json:"config"`
	Warnings []string         `json:"warnings"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "not_found", "no configuration loaded")
		return
	}
	masked := *s.cfg
	if masked.Generation.APIKey != "" {
		masked.Generation.APIKey = "***"
	}
	if masked.Embedding.APIKey != "" {
		masked.Embedding.APIKey = "***"
	}
	warnings := justcopy.ValidateConfig(s.cfg)
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, configResponse{Config: &masked, Warnings: warnings})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req justcopy.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	slog.Debug("chat request", "message", req.Message, "project_path", req.ProjectPath)
	writeJSON(w, http.StatusOK, s.engine.Chat(r.Context(), &req))
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	var req justcopy.CodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.engine.GenerateCode(r.Context(), &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// fileOperation dispatches one file operation and returns its payload.
func (s *Server) fileOperation(ctx context.Context, req *justcopy.FileOperationRequest) (map[string]any, error) {
	switch req.Operation {
	case justcopy.FileRead:
		content, err := s.ws.Read(req.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"content": content}, nil

	case justcopy.FileWrite:
		if err := s.ws.Write(req.Path, req.Content); err != nil {
			return nil, err
		}
		if abs, err := s.ws.Resolve(req.Path); err == nil {
			s.engine.Invalidate(abs)
		}
		// Indexing failures are logged by the engine and do not fail the write.
		s.engine.StoreFile(ctx, req.Path, req.Content)
		return map[string]any{"message": "File written successfully"}, nil

	case justcopy.FileDelete:
		if err := s.ws.Delete(req.Path); err != nil {
			return nil, err
		}
		if abs, err := s.ws.Resolve(req.Path); err == nil {
			s.engine.Invalidate(abs)
		}
		return map[string]any{"message": "File deleted successfully"}, nil

	case justcopy.FileList:
		items, err := s.ws.List(req.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil

	default:
		return nil, fmt.Errorf("%w: %q", workspace.ErrInvalidOperation, req.Operation)
	}
}

func (s *Server) handleFileOperation(w http.ResponseWriter, r *http.Request) {
	var req justcopy.FileOperationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.fileOperation(r.Context(), &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.ws.ListFiles(r.URL.Query().Get("path"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

type createProjectResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (s *Server) createProject(req *justcopy.ProjectRequest) (*createProjectResponse, error) {
	dir, err := s.scaffolder.Create(*req)
	if err != nil {
		return nil, err
	}
	s.engine.Invalidate(dir)
	return &createProjectResponse{
		Message: fmt.Sprintf("Project '%s' created successfully", req.Name),
		Path:    dir,
	}, nil
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req justcopy.ProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.createProject(&req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.scaffolder.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleSelectFolder(w http.ResponseWriter, r *http.Request) {
	var req justcopy.FolderSelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := workspace.SelectFolder(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
