package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
	"github.com/anupsingh-ai/justcopy-ai-ide/generate"
)

func decodeTranscript(t *testing.T, out string) []replEntry {
	t.Helper()
	var entries []replEntry
	for _, chunk := range strings.Split(out, entrySeparator) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		var e replEntry
		_, err := toml.Decode(chunk, &e)
		require.NoError(t, err, "chunk:\n%s", chunk)
		entries = append(entries, e)
	}
	return entries
}

func TestREPLTranscript(t *testing.T) {
	engine := &stubEngine{}
	in := strings.NewReader("hello\n\n:project demo\n:code add numbers\n:quit\nnever sent\n")
	var tty, out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), in, &tty, &out, engine, "", false))

	entries := decodeTranscript(t, out.String())
	require.Len(t, entries, 2)

	assert.Equal(t, "chat", entries[0].Request.Kind)
	assert.Equal(t, "hello", entries[0].Request.Input)
	assert.Empty(t, entries[0].Request.ProjectPath)
	require.NotNil(t, entries[0].Response)
	assert.Equal(t, "echo: hello", entries[0].Response.Text)

	assert.Equal(t, "code", entries[1].Request.Kind)
	assert.Equal(t, "add numbers", entries[1].Request.Input)
	assert.Equal(t, "demo", entries[1].Request.ProjectPath)
	require.NotNil(t, entries[1].Response)
	assert.Equal(t, "print('hi')", entries[1].Response.Text)

	assert.Contains(t, tty.String(), "project: demo")
	assert.NotContains(t, out.String(), "never sent")
}

func TestREPLFileOperationsAndErrors(t *testing.T) {
	engine := &stubEngine{
		chat: &justcopy.ChatResponse{
			Response:       "done",
			FileOperations: []justcopy.InferredFileOperation{{Operation: "CREATE", FilePath: "main.py", Description: "py"}},
			FilesModified:  true,
		},
		codeErr: fmt.Errorf("%w: refused", generate.ErrInferenceUnavailable),
	}
	in := strings.NewReader("create a python script\n:code x\n")
	var tty, out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), in, &tty, &out, engine, "proj", false))

	entries := decodeTranscript(t, out.String())
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].Response)
	assert.True(t, entries[0].Response.FilesModified)
	assert.Equal(t, []replOperation{{Operation: "CREATE", FilePath: "main.py", Description: "py"}}, entries[0].Response.FileOperations)

	assert.Nil(t, entries[1].Response)
	require.NotNil(t, entries[1].Error)
	assert.Equal(t, "upstream_unavailable", entries[1].Error.Code)
	assert.Contains(t, tty.String(), "error [upstream_unavailable]")
}
