package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syntheo/syntheo/internal/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the workspace and keep it fresh on file changes",
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

		// Catch up first, then follow changes.
		stats, err := eng.Index(ctx, false)
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d files, watching for changes (ctrl-c to stop)\n", stats.FilesIndexed)

		w, err := eng.NewWatcher()
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
