package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntheo/syntheo/internal/engine"
)

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Ingest the workspace into the search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := engine.Open(ctx, flagWorkspace)
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close(context.Background()) }()

		if err := eng.Embedder.Initialize(ctx); err != nil {
			return err
		}

		stats, err := eng.Index(ctx, flagForce)
		if stats != nil {
			fmt.Printf("indexed %d files (%d blocks), skipped %d, failed %d in %s\n",
				stats.FilesIndexed, stats.BlocksIndexed, stats.FilesSkipped,
				stats.FilesFailed, stats.Duration.Round(time.Millisecond))
		}
		return err
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "re-ingest every file, ignoring the change cache")
	rootCmd.AddCommand(indexCmd)
}
