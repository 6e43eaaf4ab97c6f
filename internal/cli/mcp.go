package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/syntheo/syntheo/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		srv, err := mcpserver.NewServer(ctx, flagWorkspace)
		if err != nil {
			return err
		}
		return srv.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
