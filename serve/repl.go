package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

var flagProject string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat with the agent from the terminal, writing TOML records to stdout",
	Long: `repl reads one message per line and sends it to the chat pipeline.
A short summary goes to stderr and a TOML record of each exchange to stdout,
so "justcopyd repl > log.toml" keeps a transcript.

Commands:
  :project <path>  set the project path
  :code <prompt>   run code generation instead of chat
  :quit            exit`,
	RunE: runREPLCmd,
}

func init() {
	replCmd.Flags().StringVar(&flagProject, "project", "", "initial project path")
	rootCmd.AddCommand(replCmd)
}

func runREPLCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	return runREPL(cmd.Context(), os.Stdin, os.Stderr, os.Stdout, a.server.engine, flagProject, interactive)
}

type replRequest struct {
	Timestamp   time.Time `toml:"timestamp"`
	Kind        string    `toml:"kind"`
	Input       string    `toml:"input"`
	ProjectPath string    `toml:"project_path,omitempty"`
}

type replOperation struct {
	Operation   string `toml:"operation"`
	FilePath    string `toml:"file_path"`
	Description string `toml:"description"`
}

type replResponse struct {
	Text           string          `toml:"text"`
	FilesModified  bool            `toml:"files_modified"`
	ContextUsed    string          `toml:"context_used,omitempty"`
	FileOperations []replOperation `toml:"file_operations,omitempty"`
}

type replError struct {
	Code    string `toml:"code"`
	Message string `toml:"message"`
}

type replEntry struct {
	Request  replRequest   `toml:"request"`
	Response *replResponse `toml:"response,omitempty"`
	Error    *replError    `toml:"error,omitempty"`
}

// entrySeparator precedes every TOML record so a transcript can be split
// back into independently decodable entries.
var entrySeparator = "# " + strings.Repeat("═", 60) + "\n\n"

// runREPL drives the engine from in until EOF or :quit. Summaries go to tty
// and TOML records to out.
func runREPL(ctx context.Context, in io.Reader, tty, out io.Writer, engine Engine, projectPath string, interactive bool) error {
	if interactive {
		fmt.Fprintf(tty, "justcopy repl\nproject: %s\n\n", displayProject(projectPath))
		fmt.Fprintf(tty, "commands:\n  :project <path>  set project path\n  :code <prompt>   generate code\n  :quit            exit\n\n")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for {
		if interactive {
			fmt.Fprint(tty, "> ")
		}
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
			continue
		case text == ":quit" || text == ":q":
			return nil
		case strings.HasPrefix(text, ":project"):
			projectPath = strings.TrimSpace(strings.TrimPrefix(text, ":project"))
			fmt.Fprintf(tty, "project: %s\n\n", displayProject(projectPath))
			continue
		}

		entry := replEntry{Request: replRequest{Timestamp: time.Now().UTC().Truncate(time.Second), ProjectPath: projectPath}}
		if prompt, ok := strings.CutPrefix(text, ":code "); ok {
			entry.Request.Kind = "code"
			entry.Request.Input = prompt
			resp, err := engine.GenerateCode(ctx, &justcopy.CodeRequest{Prompt: prompt})
			if err != nil {
				_, code := classify(err)
				entry.Error = &replError{Code: code, Message: err.Error()}
				fmt.Fprintf(tty, "error [%s]: %s\n\n", code, err)
			} else {
				entry.Response = &replResponse{Text: resp.Code, ContextUsed: resp.ContextUsed}
				fmt.Fprintf(tty, "%s\n\n", resp.Code)
			}
		} else {
			entry.Request.Kind = "chat"
			entry.Request.Input = text
			resp := engine.Chat(ctx, &justcopy.ChatRequest{Message: text, ProjectPath: projectPath})
			entry.Response = &replResponse{Text: resp.Response, FilesModified: resp.FilesModified}
			for _, op := range resp.FileOperations {
				entry.Response.FileOperations = append(entry.Response.FileOperations, replOperation(op))
			}
			fmt.Fprintf(tty, "%s\n", resp.Response)
			for _, op := range resp.FileOperations {
				fmt.Fprintf(tty, "  %s %s (written: %v)\n", op.Operation, op.FilePath, resp.FilesModified)
			}
			fmt.Fprintln(tty)
		}

		if err := writeEntry(out, &entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeEntry(w io.Writer, entry *replEntry) error {
	if _, err := io.WriteString(w, entrySeparator); err != nil {
		return err
	}
	if err := toml.NewEncoder(w).Encode(entry); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func displayProject(p string) string {
	if p == "" {
		return "(projects root)"
	}
	return p
}
