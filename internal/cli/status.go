package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntheo/syntheo/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is indexed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		eng, err := engine.Open(ctx, flagWorkspace)
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close(ctx) }()

		status, err := eng.Ingestor.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("files:   %d\n", status.TotalFiles)
		fmt.Printf("blocks:  %d\n", status.TotalBlocks)
		fmt.Printf("vectors: %d (capacity %d)\n", eng.Vectors.Count(), eng.Vectors.Capacity())
		fmt.Printf("size:    %.2f MB\n", status.IndexSizeMB)
		if status.LastIndexed > 0 {
			fmt.Printf("indexed: %s\n", time.UnixMilli(status.LastIndexed).Format(time.RFC3339))
		}

		if len(status.Languages) > 0 {
			langs := make([]string, 0, len(status.Languages))
			for l := range status.Languages {
				langs = append(langs, l)
			}
			sort.Strings(langs)
			fmt.Println("languages:")
			for _, l := range langs {
				fmt.Printf("  %-12s %d\n", l, status.Languages[l])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
