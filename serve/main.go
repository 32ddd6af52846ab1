// Command justcopyd is the justcopy daemon.
// It serves the agentic chat, code generation, file and project APIs over
// HTTP and WebSocket, or the same operations as MCP tools over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagConfig  string
	flagVerbose bool
	flagAddr    string
)

var rootCmd = &cobra.Command{
	Use:               "justcopyd",
	Short:             "Local agentic coding assistant daemon",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("justcopyd", Version)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the workspace tools over MCP on stdio",
	RunE:  runMCP,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.toml (default: config dir)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log every request and response")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config and JUSTCOPY_ADDR)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func loadConfig() (*justcopy.Config, error) {
	var (
		cfg *justcopy.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = justcopy.LoadConfigFile(flagConfig)
	} else {
		cfg, err = justcopy.LoadConfig()
	}
	if err != nil {
		return nil, err
	}
	for _, w := range justcopy.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := flagAddr
	if addr == "" {
		addr = justcopy.ResolveAddr(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "projects", a.server.ws.Root())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("serving MCP on stdio", "projects", a.server.ws.Root())
	if err := newMCPServer(a.server).Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
