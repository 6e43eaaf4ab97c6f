package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syntheo/syntheo/internal/engine"
	"github.com/syntheo/syntheo/pkg/types"
)

var (
	flagLimit        int
	flagLanguage     string
	flagBlockType    string
	flagMinScore     float64
	flagSemanticOnly bool
	flagKeywordOnly  bool
	flagNoRerank     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		query := strings.Join(args, " ")

		eng, err := engine.Open(ctx, flagWorkspace)
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close(ctx) }()

		opts := types.SearchOptions{
			Limit:          flagLimit,
			Language:       flagLanguage,
			BlockType:      flagBlockType,
			MinScore:       flagMinScore,
			SemanticOnly:   flagSemanticOnly,
			KeywordOnly:    flagKeywordOnly,
			SemanticWeight: eng.Config.Search.HybridWeight.Semantic,
			KeywordWeight:  eng.Config.Search.HybridWeight.Keyword,
			Rerank:         eng.Config.Search.Rerank && !flagNoRerank,
		}
		if opts.Limit <= 0 {
			opts.Limit = eng.Config.Search.MaxResults
		}
		if !cmd.Flags().Changed("min-score") {
			opts.MinScore = eng.Config.Search.MinScore
		}

		results, err := eng.Retriever.Search(ctx, query, opts)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for i, r := range results {
			symbol := r.Block.SymbolName
			if symbol == "" {
				symbol = "(" + string(r.Block.Type) + ")"
			}
			fmt.Printf("%2d. [%.3f] %s:%d-%d  %s\n",
				i+1, r.Score, r.Block.FilePath, r.Block.StartLine, r.Block.EndLine, symbol)
			fmt.Println(indent(snippet(r.Block.Content, 4), "      "))
		}
		return nil
	},
}

func snippet(content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "...")
	}
	return strings.Join(lines, "\n")
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum results (default from config)")
	searchCmd.Flags().StringVar(&flagLanguage, "language", "", "restrict to one language")
	searchCmd.Flags().StringVar(&flagBlockType, "type", "", "restrict to one block type")
	searchCmd.Flags().Float64Var(&flagMinScore, "min-score", 0, "minimum final score")
	searchCmd.Flags().BoolVar(&flagSemanticOnly, "semantic-only", false, "disable the keyword channel")
	searchCmd.Flags().BoolVar(&flagKeywordOnly, "keyword-only", false, "disable the semantic channel")
	searchCmd.Flags().BoolVar(&flagNoRerank, "no-rerank", false, "skip the re-ranking pass")
	rootCmd.AddCommand(searchCmd)
}
