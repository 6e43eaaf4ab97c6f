package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var flagWorkspace string

var rootCmd = &cobra.Command{
	Use:           "syntheo",
	Short:         "Local-first semantic code search",
	Long:          "syntheo indexes a workspace into a hybrid semantic + keyword search index and answers natural-language queries against it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Any failure exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", ".", "workspace directory")
}
