package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/syntheo/syntheo/internal/engine"
	"github.com/syntheo/syntheo/pkg/types"
)

func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed workspace with a natural-language or keyword query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     20,
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to one language (e.g. typescript, python)",
				},
				"block_type": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to one block type (e.g. function_declaration)",
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum final score (0.0-1.0)",
				},
				"semantic_only": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
				"keyword_only": map[string]interface{}{
					"type":    "boolean",
					"default": false,
				},
			},
			Required: []string{"query"},
		},
	}
}

func indexWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_workspace",
		Description: "Ingest the workspace into the search index (incremental unless force is set)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-ingest every file, ignoring the change cache",
					"default":     false,
				},
			},
		},
	}
}

func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report indexed file and block counts, languages, and index size",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_index",
		Description: "Wipe the on-disk index state for the workspace (keeps configuration)",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	opts := types.DefaultSearchOptions()
	opts.Rerank = s.engine.Config.Search.Rerank
	opts.MinScore = s.engine.Config.Search.MinScore
	opts.SemanticWeight = s.engine.Config.Search.HybridWeight.Semantic
	opts.KeywordWeight = s.engine.Config.Search.HybridWeight.Keyword
	if v, ok := args["limit"].(float64); ok && v > 0 {
		opts.Limit = int(v)
	}
	if v, ok := args["language"].(string); ok {
		opts.Language = v
	}
	if v, ok := args["block_type"].(string); ok {
		opts.BlockType = v
	}
	if v, ok := args["min_score"].(float64); ok {
		opts.MinScore = v
	}
	opts.SemanticOnly, _ = args["semantic_only"].(bool)
	opts.KeywordOnly, _ = args["keyword_only"].(bool)

	results, err := s.engine.Retriever.Search(ctx, query, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		payload = append(payload, map[string]interface{}{
			"file":          r.Block.FilePath,
			"startLine":     r.Block.StartLine,
			"endLine":       r.Block.EndLine,
			"blockType":     string(r.Block.Type),
			"language":      r.Block.Language,
			"symbol":        r.Block.SymbolName,
			"parentSymbol":  r.Block.ParentSymbol,
			"score":         r.Score,
			"semanticScore": r.SemanticScore,
			"keywordScore":  r.KeywordScore,
			"content":       r.Block.Content,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": payload,
	})), nil
}

func (s *Server) handleIndexWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	force := false
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		force, _ = args["force"].(bool)
	}

	stats, err := s.engine.Index(ctx, force)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"filesIndexed":  stats.FilesIndexed,
		"filesSkipped":  stats.FilesSkipped,
		"filesFailed":   stats.FilesFailed,
		"blocksIndexed": stats.BlocksIndexed,
		"durationMs":    stats.Duration.Milliseconds(),
	})), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.engine.Ingestor.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"totalFiles":  status.TotalFiles,
		"totalBlocks": status.TotalBlocks,
		"languages":   status.Languages,
		"indexSizeMB": status.IndexSizeMB,
		"lastIndexed": status.LastIndexed,
	})), nil
}

func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := engine.Clear(s.engine.Workspace); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(`{"cleared": true}`), nil
}

func formatJSON(data map[string]interface{}) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
