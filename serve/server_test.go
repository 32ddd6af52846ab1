package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	"github.com/anupsingh-ai/justcopy-ai-ide/generate"
	"github.com/anupsingh-ai/justcopy-ai-ide/workspace"
)

// stubEngine records calls and returns canned results.
type stubEngine struct {
	mu          sync.Mutex
	chat        *justcopy.ChatResponse
	code        *justcopy.CodeResponse
	codeErr     error
	panicOnChat bool
	stored      []string
	invalidated []string
	codeReqs    []justcopy.CodeRequest
}

func (e *stubEngine) Chat(_ context.Context, req *justcopy.ChatRequest) *justcopy.ChatResponse {
	if e.panicOnChat {
		panic("boom")
	}
	if e.chat != nil {
		return e.chat
	}
	return &justcopy.ChatResponse{Response: "echo: " + req.Message, FileOperations: []justcopy.InferredFileOperation{}}
}

func (e *stubEngine) GenerateCode(_ context.Context, req *justcopy.CodeRequest) (*justcopy.CodeResponse, error) {
	e.mu.Lock()
	e.codeReqs = append(e.codeReqs, *req)
	e.mu.Unlock()
	if req.Prompt == "" {
		return nil, generate.ErrEmptyPrompt
	}
	if e.codeErr != nil {
		return nil, e.codeErr
	}
	if e.code != nil {
		return e.code, nil
	}
	return &justcopy.CodeResponse{Code: "print('hi')", ContextUsed: ""}, nil
}

func (e *stubEngine) StoreFile(_ context.Context, path, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stored = append(e.stored, path+"="+content)
	return nil
}

func (e *stubEngine) Invalidate(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidated = append(e.invalidated, path)
}

type testEnv struct {
	root   string
	engine *stubEngine
	srv    *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	root := t.TempDir()
	engine := &stubEngine{}
	o := Options{
		Engine:         engine,
		Workspace:      workspace.New(root),
		AllowedOrigins: []string{"*"},
	}
	for _, fn := range opts {
		fn(&o)
	}
	srv := NewServer(o)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{root: root, engine: engine, srv: srv, http: ts}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.http.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) *justcopy.Error {
	t.Helper()
	var er justcopy.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &er))
	require.NotNil(t, er.Error, "expected error payload, got %s", data)
	return er.Error
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Health = map[string]HealthCheck{
			ServiceEmbedding: func(context.Context) error { return nil },
			ServiceVectorDB:  func(context.Context) error { return nil },
			ServiceInference: func(context.Context) error { return errors.New("connection refused") },
		}
	})

	resp, data := env.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got healthResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, map[string]bool{"embedding": true, "vector_db": true, "inference": false}, got.Services)
}

func TestHealthNoChecks(t *testing.T) {
	env := newTestEnv(t)
	_, data := env.do(t, "GET", "/health", nil)
	assert.JSONEq(t, `{"status":"healthy","services":{"embedding":false,"vector_db":false,"inference":false}}`, string(data))
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "POST", "/api/chat", justcopy.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"response":"echo: hello","file_operations":[],"files_modified":false}`, string(data))
}

func TestChatMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "POST", "/api/chat", "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decodeError(t, data).Code)
}

func TestChatPanicRecovered(t *testing.T) {
	env := newTestEnv(t)
	env.engine.panicOnChat = true

	resp, data := env.do(t, "POST", "/api/chat", justcopy.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal_error", decodeError(t, data).Code)

	// The server keeps serving after a panic.
	resp, _ = env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateCode(t *testing.T) {
	env := newTestEnv(t)
	env.engine.code = &justcopy.CodeResponse{Code: "def add(a, b): return a + b", ContextUsed: "ctx"}

	resp, data := env.do(t, "POST", "/api/code/generate", justcopy.CodeRequest{Prompt: "add", FilePath: "math.py"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"code":"def add(a, b): return a + b","context_used":"ctx"}`, string(data))
	require.Len(t, env.engine.codeReqs, 1)
	assert.Equal(t, "math.py", env.engine.codeReqs[0].FilePath)
}

func TestGenerateCodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    justcopy.CodeRequest
		err    error
		status int
		code   string
	}{
		{"missing prompt", justcopy.CodeRequest{}, nil, http.StatusBadRequest, "invalid_request"},
		{"upstream down", justcopy.CodeRequest{Prompt: "x"}, fmt.Errorf("%w: connection refused", generate.ErrInferenceUnavailable), http.StatusServiceUnavailable, "upstream_unavailable"},
		{"unexpected", justcopy.CodeRequest{Prompt: "x"}, errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.engine.codeErr = tt.err
			resp, data := env.do(t, "POST", "/api/code/generate", tt.req)
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Code)
		})
	}
}

func TestFileWriteReadRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "POST", "/api/files/operation", justcopy.FileOperationRequest{
		Operation: "write", Path: "/proj/src/app.py", Content: "print('x')",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"File written successfully"}`, string(data))

	resp, data = env.do(t, "POST", "/api/files/operation", justcopy.FileOperationRequest{Operation: "read", Path: "proj/src/app.py"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"content":"print('x')"}`, string(data))

	assert.Equal(t, []string{"/proj/src/app.py=print('x')"}, env.engine.stored)
	assert.Equal(t, []string{filepath.Join(env.root, "proj", "src", "app.py")}, env.engine.invalidated)
}

func TestFileDelete(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "a.txt"), []byte("x"), 0644))

	for i := 0; i < 2; i++ {
		resp, data := env.do(t, "POST", "/api/files/operation", justcopy.FileOperationRequest{Operation: "delete", Path: "a.txt"})
		require.Equal(t, http.StatusOK, resp.StatusCode, "delete #%d", i+1)
		assert.JSONEq(t, `{"message":"File deleted successfully"}`, string(data))
	}
	assert.NoFileExists(t, filepath.Join(env.root, "a.txt"))
}

func TestFileList(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "p", "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "p", "main.py"), []byte("x"), 0644))

	resp, data := env.do(t, "POST", "/api/files/operation", justcopy.FileOperationRequest{Operation: "list", Path: "p"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"items":[
		{"name":"main.py","type":"file","path":"p/main.py"},
		{"name":"src","type":"directory","path":"p/src"}
	]}`, string(data))
}

func TestFileOperationErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    justcopy.FileOperationRequest
		status int
		code   string
	}{
		{"read missing", justcopy.FileOperationRequest{Operation: "read", Path: "nope.txt"}, http.StatusNotFound, "not_found"},
		{"unknown operation", justcopy.FileOperationRequest{Operation: "rename", Path: "a"}, http.StatusBadRequest, "invalid_request"},
		{"traversal read", justcopy.FileOperationRequest{Operation: "read", Path: "../etc/passwd"}, http.StatusBadRequest, "invalid_request"},
		{"traversal write", justcopy.FileOperationRequest{Operation: "write", Path: "a/../../x", Content: "x"}, http.StatusBadRequest, "invalid_request"},
		{"list missing dir", justcopy.FileOperationRequest{Operation: "list", Path: "missing"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp, data := env.do(t, "POST", "/api/files/operation", tt.req)
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, data).Code)
			assert.Empty(t, env.engine.stored)
		})
	}
}

func TestListFiles(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "p", "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "p", "a.txt"), []byte("hello"), 0644))

	resp, data := env.do(t, "GET", "/api/files/list?path=p", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"files":[
		{"name":"a.txt","type":"file","path":"p/a.txt","size":5},
		{"name":"docs","type":"directory","path":"p/docs","size":0}
	]}`, string(data))

	resp, data = env.do(t, "GET", "/api/files/list?path=fresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"files":[]}`, string(data))
	assert.DirExists(t, filepath.Join(env.root, "fresh"))
}

func TestProjects(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "POST", "/api/projects/create", justcopy.ProjectRequest{Name: "demo", Description: "A demo", Template: "python"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created createProjectResponse
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "Project 'demo' created successfully", created.Message)
	assert.Equal(t, filepath.Join(env.root, "demo"), created.Path)
	assert.FileExists(t, filepath.Join(env.root, "demo", "src", "main.py"))
	assert.FileExists(t, filepath.Join(env.root, "demo", "requirements.txt"))
	assert.Contains(t, env.engine.invalidated, created.Path)

	resp, data = env.do(t, "POST", "/api/projects/create", justcopy.ProjectRequest{Name: "demo"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "project_exists", decodeError(t, data).Code)

	resp, data = env.do(t, "POST", "/api/projects/create", justcopy.ProjectRequest{Name: "../evil"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decodeError(t, data).Code)

	resp, data = env.do(t, "GET", "/api/projects/list", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"projects":[{"name":"demo","path":"demo","description":"A demo","template":"python"}]}`, string(data))
}

func TestSelectFolder(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "POST", "/api/folder/select", justcopy.FolderSelectionRequest{FolderPath: "my-app", FileCount: 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got justcopy.FolderSelectionResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Success)
	assert.Equal(t, "my-app", got.FolderPath)
	assert.Contains(t, got.Message, "with 3 files")

	for _, bad := range []string{"", "../outside", "a/../../b"} {
		resp, data := env.do(t, "POST", "/api/folder/select", justcopy.FolderSelectionRequest{FolderPath: bad})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "folder %q", bad)
		assert.Equal(t, "invalid_request", decodeError(t, data).Code)
	}
}

func TestConfigEndpointMasksSecrets(t *testing.T) {
	cfg := justcopy.DefaultConfig()
	cfg.Generation.APIKey = "sk-secret"
	env := newTestEnv(t, func(o *Options) { o.Config = cfg })

	resp, data := env.do(t, "GET", "/api/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(data), "sk-secret")

	var got configResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "***", got.Config.Generation.APIKey)
	assert.Equal(t, "sk-secret", cfg.Generation.APIKey, "original config must not be modified")
	assert.NotNil(t, got.Warnings)
}

func TestConfigEndpointWithoutConfig(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, "GET", "/api/config", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, "GET", "/health", nil)
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)

	req, _ := http.NewRequest("GET", env.http.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, "abc-123", resp2.Header.Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.AllowedOrigins = []string{"http://localhost:3000"} })

	req, _ := http.NewRequest("OPTIONS", env.http.URL+"/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest("GET", env.http.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticFiles(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>ui</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0644))
	env := newTestEnv(t, func(o *Options) { o.StaticDir = static })

	resp, data := env.do(t, "GET", "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>ui</h1>", string(data))

	resp, data = env.do(t, "GET", "/static/app.js", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log(1)", string(data))
}

func TestStaticDisabledWhenMissing(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.StaticDir = filepath.Join(t.TempDir(), "nope") })
	resp, _ := env.do(t, "GET", "/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{workspace.ErrNotFound, 404, "not_found"},
		{fmt.Errorf("wrap: %w", workspace.ErrInvalidPath), 400, "invalid_request"},
		{workspace.ErrInvalidOperation, 400, "invalid_request"},
		{workspace.ErrNotDirectory, 400, "invalid_request"},
		{workspace.ErrProjectExists, 400, "project_exists"},
		{generate.ErrEmptyPrompt, 400, "invalid_request"},
		{generate.ErrInferenceUnavailable, 503, "upstream_unavailable"},
		{errors.New("other"), 500, "internal_error"},
	}
	for _, tt := range tests {
		status, code := classify(tt.err)
		assert.Equal(t, tt.status, status, "%v", tt.err)
		assert.Equal(t, tt.code, code, "%v", tt.err)
	}
}
