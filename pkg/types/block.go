package types

import (
	"errors"
	"math"
	"strings"
)

// BlockType identifies the syntactic kind of a block. Values mirror the
// parse-tree node kinds of the source language, plus "file" for whole-file
// fallback blocks.
type BlockType string

const (
	// TypeScript / JavaScript node kinds
	BlockFunctionDeclaration BlockType = "function_declaration"
	BlockFunctionExpression  BlockType = "function_expression"
	BlockArrowFunction       BlockType = "arrow_function"
	BlockClassDeclaration    BlockType = "class_declaration"
	BlockClassExpression     BlockType = "class_expression"
	BlockMethodDefinition    BlockType = "method_definition"
	BlockInterface           BlockType = "interface_declaration"
	BlockTypeAlias           BlockType = "type_alias_declaration"
	BlockEnum                BlockType = "enum_declaration"

	// Python node kinds
	BlockFunctionDefinition BlockType = "function_definition"
	BlockClassDefinition    BlockType = "class_definition"
	BlockDecoratedDef       BlockType = "decorated_definition"

	// BlockFile is the fallback for files without semantic nodes.
	BlockFile BlockType = "file"
)

// IsFunctionLike reports whether the block type represents a callable.
func (bt BlockType) IsFunctionLike() bool {
	switch bt {
	case BlockFunctionDeclaration, BlockFunctionExpression, BlockArrowFunction,
		BlockMethodDefinition, BlockFunctionDefinition:
		return true
	}
	return false
}

// IsClassLike reports whether the block type represents a class.
func (bt BlockType) IsClassLike() bool {
	switch bt {
	case BlockClassDeclaration, BlockClassExpression, BlockClassDefinition:
		return true
	}
	return false
}

// Block is the smallest unit that is separately embedded and retrieved.
type Block struct {
	// ID is the first 16 hex chars of
	// SHA-256(file_path|start_line|end_line|block_type|chunk_index).
	// Stable across re-ingestions of the same fragment.
	ID string

	// FilePath is relative to the workspace root, slash-separated.
	FilePath string

	// StartLine and EndLine are 1-based inclusive.
	StartLine int
	EndLine   int

	Content     string
	ContentHash string // SHA-256 hex of Content

	Type     BlockType
	Language string

	// SymbolName is the identifier of the syntactic node, if any.
	SymbolName string
	// ParentSymbol names the enclosing semantic node, if any.
	ParentSymbol string

	// ChunkIndex distinguishes the sub-blocks of an oversize node.
	ChunkIndex int

	// Tokens is the estimated token count of Content.
	Tokens int

	CreatedAt int64 // ms epoch
	UpdatedAt int64 // ms epoch
}

// Validate checks the block invariants before it enters the catalog.
func (b *Block) Validate() error {
	if b.ID == "" {
		return errors.New("block id is required")
	}
	if b.FilePath == "" {
		return errors.New("block file path is required")
	}
	if b.StartLine <= 0 || b.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if b.StartLine > b.EndLine {
		return errors.New("start line must not exceed end line")
	}
	if b.Type == "" {
		return errors.New("block type is required")
	}
	return nil
}

// EstimateTokens estimates the token count of text as
// ceil(0.75 x whitespace-separated word count). Used for chunk sizing only;
// embedder truncation uses a chars/4 approximation instead.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(0.75 * float64(words)))
}
