package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syntheo/syntheo/internal/engine"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe the on-disk index state (keeps config.json)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.Clear(flagWorkspace); err != nil {
			return err
		}
		fmt.Println("index cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
