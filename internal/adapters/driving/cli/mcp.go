package cli

import (
	"errors"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/adapters/driving/mcp"
)

var (
	mcpPort int
	mcpHost string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the record store to MCP clients",
	Long: `Serves read-only access to the record store over the Model Context
Protocol: opportunity queries, single records, statistics and sync status.

Without --port the server speaks JSON-RPC over stdio, which is what desktop
MCP clients launch. With --port it serves streamable HTTP for dashboards.

Examples:
  afrisam mcp serve
  afrisam mcp serve --port 8080 --host 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = stdio)")
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "127.0.0.1", "HTTP bind address")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{Query: queryService, Sync: syncService})
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		return server.RunHTTP(cmd.Context(), net.JoinHostPort(mcpHost, strconv.Itoa(mcpPort)))
	}
	return server.Run(cmd.Context())
}
