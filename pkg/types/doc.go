// Package types provides shared type definitions for the syntheo search
// engine.
//
// # Core Types
//
// Block is the indexing unit: a syntactically bounded fragment of a source
// file that is separately embedded and retrieved.
//
//	block := &types.Block{
//	    FilePath:   "src/users.ts",
//	    StartLine:  10,
//	    EndLine:    24,
//	    Type:       types.BlockFunctionDeclaration,
//	    SymbolName: "getUserById",
//	}
//
// Block identity is deterministic: the ID is derived from
// (file_path, start_line, end_line, block_type, chunk_index), so the same
// fragment re-ingested yields the same ID.
//
// FileRecord summarizes one indexed file; SearchStat is the per-query
// observability row; SearchOptions and SearchResult carry the retrieval
// pipeline's inputs and outputs.
//
// Higher scores indicate better matches. Per-channel scores lie in [0, 1];
// a final score can exceed 1 after boosting unless re-ranking clips it.
package types
