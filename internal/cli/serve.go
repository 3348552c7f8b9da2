package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"semnotes/internal/adapter/httpapi"
	"semnotes/internal/adapter/mcpserver"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve capture, search and note management over HTTP/JSON, plus a
Server-Sent Events stream of note changes per owner.

Examples:
  semnotes serve
  semnotes serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP server over stdio",
	Long: `Expose capture_note, search_notes, reembed_note and list_notes as
Model Context Protocol tools. Tools act for --owner unless a call names
another owner_id.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	serverCfg := a.cfg.Server
	if serveAddr != "" {
		serverCfg.Addr = serveAddr
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Capture: a.capture,
		Reindex: a.reindex,
		Search:  a.search,
		Notes:   a.notes,
		Hub:     a.hub,
	}, serverCfg, a.logger)
	return srv.Serve(ctx, nil)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := mcpserver.NewServer(a.capture, a.reindex, a.search, a.notes, ownerID, Version)
	if err != nil {
		return err
	}
	a.logger.Info("mcp server starting", "owner_id", ownerID)
	return srv.Serve(ctx)
}
