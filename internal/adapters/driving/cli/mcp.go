package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/folio/internal/adapters/driving/mcp"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes two tools, 'ask' (answer a question with citations) and
'search' (rank chunks without answering), plus the corpus statistics and
individual chunks as resources.

By default the server communicates over stdio using JSON-RPC. Use --http to
serve the streamable HTTP transport instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  folio mcp

  # HTTP mode (for MCP Inspector, remote access)
  folio mcp --http :8080

Assistant configuration:
  {
    "mcpServers": {
      "folio": {
        "command": "/path/to/folio",
        "args": ["mcp", "--corpus", "/path/to/corpus"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rt, err := bootstrap(ctx, settings, openLoad)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // best effort on exit

	server, err := mcp.NewServer(&mcp.Ports{
		Query:  rt.Query,
		Chunks: rt.Store,
	})
	if err != nil {
		return err
	}

	serveMetrics(ctx, rt, settings.Metrics.Addr)

	if mcpHTTPAddr != "" {
		cmd.PrintErrf("MCP server listening on %s\n", mcpHTTPAddr)
		return server.RunHTTP(ctx, mcpHTTPAddr)
	}
	return server.Run(ctx)
}
