package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

func connectMCP(t *testing.T, env *testEnv) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	_, err := newMCPServer(env.srv).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

// callTool returns the text content and whether the tool reported an error.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	require.NotEmpty(t, result.Content, "CallTool(%s): empty content", name)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	return tc.Text, result.IsError
}

func TestMCPListTools(t *testing.T) {
	env := newTestEnv(t)
	session := connectMCP(t, env)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"chat", "generate_code", "file_operation", "list_files",
		"create_project", "list_projects", "select_folder",
	}, names)
}

func TestMCPChat(t *testing.T) {
	env := newTestEnv(t)
	session := connectMCP(t, env)

	text, isErr := callTool(t, session, "chat", map[string]any{"message": "hi"})
	require.False(t, isErr, text)
	var resp justcopy.ChatResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, "echo: hi", resp.Response)

	text, isErr = callTool(t, session, "chat", map[string]any{"message": ""})
	assert.True(t, isErr)
	assert.Equal(t, "Message is required", text)
}

func TestMCPFileOperations(t *testing.T) {
	env := newTestEnv(t)
	session := connectMCP(t, env)

	text, isErr := callTool(t, session, "file_operation", map[string]any{
		"operation": "write", "path": "notes/todo.md", "content": "- ship it",
	})
	require.False(t, isErr, text)

	data, err := os.ReadFile(filepath.Join(env.root, "notes", "todo.md"))
	require.NoError(t, err)
	assert.Equal(t, "- ship it", string(data))
	assert.Equal(t, []string{"notes/todo.md=- ship it"}, env.engine.stored)

	text, isErr = callTool(t, session, "file_operation", map[string]any{"operation": "read", "path": "notes/todo.md"})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"content":"- ship it"}`, text)

	text, isErr = callTool(t, session, "list_files", map[string]any{"path": "notes"})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"files":[{"name":"todo.md","type":"file","path":"notes/todo.md","size":9}]}`, text)

	text, isErr = callTool(t, session, "file_operation", map[string]any{"operation": "read", "path": "../secret"})
	assert.True(t, isErr)
	assert.Contains(t, text, "invalid path")
}

func TestMCPProjects(t *testing.T) {
	env := newTestEnv(t)
	session := connectMCP(t, env)

	text, isErr := callTool(t, session, "create_project", map[string]any{"name": "site", "template": "web"})
	require.False(t, isErr, text)
	assert.FileExists(t, filepath.Join(env.root, "site", "src", "index.html"))

	text, isErr = callTool(t, session, "create_project", map[string]any{"name": "site"})
	assert.True(t, isErr)
	assert.Contains(t, text, "project already exists")

	text, isErr = callTool(t, session, "list_projects", map[string]any{})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"projects":[{"name":"site","path":"site","template":"web"}]}`, text)
}

func TestMCPGenerateCodeAndFolder(t *testing.T) {
	env := newTestEnv(t)
	session := connectMCP(t, env)

	text, isErr := callTool(t, session, "generate_code", map[string]any{"prompt": "say hi"})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"code":"print('hi')","context_used":""}`, text)

	text, isErr = callTool(t, session, "generate_code", map[string]any{"prompt": ""})
	assert.True(t, isErr)
	assert.Contains(t, text, "prompt is required")

	text, isErr = callTool(t, session, "select_folder", map[string]any{"folder_path": "app"})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"success": true`)

	_, isErr = callTool(t, session, "select_folder", map[string]any{"folder_path": "../x"})
	assert.True(t, isErr)
}
