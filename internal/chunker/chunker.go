package chunker

import (
	"strings"
	"time"

	"github.com/syntheo/syntheo/internal/hasher"
	"github.com/syntheo/syntheo/internal/parser"
	"github.com/syntheo/syntheo/pkg/types"
)

// Default sizing policy. TargetTokens is where a window closes; MaxTokens is
// the hard ceiling that triggers splitting.
const (
	DefaultTargetTokens  = 384
	DefaultMaxTokens     = 2048
	DefaultOverlapTokens = 50
)

// semanticKinds lists the node kinds that become blocks, per language.
var semanticKinds = map[string]map[string]bool{
	"typescript": tsKinds,
	"tsx":        tsKinds,
	"javascript": tsKinds,
	"python": {
		"function_definition":  true,
		"class_definition":     true,
		"decorated_definition": true,
	},
	"go": {
		"function_declaration": true,
		"method_declaration":   true,
		"type_declaration":     true,
	},
}

var tsKinds = map[string]bool{
	"function_declaration":   true,
	"function_expression":    true,
	"arrow_function":         true,
	"class_declaration":      true,
	"class_expression":       true,
	"method_definition":      true,
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"enum_declaration":       true,
}

// Chunker converts parse trees into ordered Block lists.
type Chunker struct {
	targetTokens  int
	maxTokens     int
	overlapTokens int
}

// New creates a chunker with the given sizing policy. Non-positive values
// fall back to the defaults.
func New(targetTokens, maxTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens <= 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Chunker{
		targetTokens:  targetTokens,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
	}
}

// Chunk emits Blocks for a file in source order. root may be nil for files
// without a parse tree; those get a single whole-file block.
func (c *Chunker) Chunk(filePath, source string, root *parser.Node, language string) []types.Block {
	lines := strings.Split(source, "\n")

	var blocks []types.Block
	if root != nil {
		kinds := semanticKinds[language]
		c.walk(root, kinds, "", filePath, language, lines, &blocks)
	}

	// Non-code or unrecognized tree: one block covering the whole file.
	if len(blocks) == 0 {
		if strings.TrimSpace(source) == "" {
			return nil
		}
		blocks = c.emit(filePath, language, string(types.BlockFile), "", "", lines, 1, len(lines))
	}
	return blocks
}

// walk is the depth-first pass. A semantic node emits a block and recurses
// only into its non-semantic children; everything nested below it carries
// the node's identifier as parent symbol.
func (c *Chunker) walk(n *parser.Node, kinds map[string]bool, parentSymbol, filePath, language string, lines []string, out *[]types.Block) {
	if kinds[n.Kind] {
		symbol := n.Identifier()
		*out = append(*out, c.emit(filePath, language, n.Kind, symbol, parentSymbol, lines, n.StartLine, n.EndLine)...)

		next := parentSymbol
		if symbol != "" {
			next = symbol
		}
		for _, child := range n.Children {
			if kinds[child.Kind] {
				continue
			}
			c.walk(child, kinds, next, filePath, language, lines, out)
		}
		return
	}

	for _, child := range n.Children {
		c.walk(child, kinds, parentSymbol, filePath, language, lines, out)
	}
}

// emit produces the block(s) for one node, splitting oversize content into
// overlapping line windows.
func (c *Chunker) emit(filePath, language, kind, symbol, parentSymbol string, lines []string, startLine, endLine int) []types.Block {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return nil
	}

	content := strings.Join(lines[startLine-1:endLine], "\n")
	tokens := types.EstimateTokens(content)
	now := time.Now().UnixMilli()

	if tokens <= c.maxTokens {
		return []types.Block{{
			ID:           hasher.BlockID(filePath, startLine, endLine, kind, 0),
			FilePath:     filePath,
			StartLine:    startLine,
			EndLine:      endLine,
			Content:      content,
			ContentHash:  hasher.HashBytes([]byte(content)),
			Type:         types.BlockType(kind),
			Language:     language,
			SymbolName:   symbol,
			ParentSymbol: parentSymbol,
			ChunkIndex:   0,
			Tokens:       tokens,
			CreatedAt:    now,
			UpdatedAt:    now,
		}}
	}

	// Oversize node: split by line window. Sub-blocks keep the node's line
	// range in their identity so the IDs differ only by chunk index, and
	// they all point back to the enclosing symbol.
	parent := parentSymbol
	if symbol != "" {
		parent = symbol
	}

	windows := splitWindows(lines[startLine-1:endLine], c.targetTokens, c.overlapTokens)
	blocks := make([]types.Block, 0, len(windows))
	for i, w := range windows {
		wContent := strings.Join(lines[startLine-1+w.start:startLine-1+w.end], "\n")
		blocks = append(blocks, types.Block{
			ID:           hasher.BlockID(filePath, startLine, endLine, kind, i),
			FilePath:     filePath,
			StartLine:    startLine + w.start,
			EndLine:      startLine + w.end - 1,
			Content:      wContent,
			ContentHash:  hasher.HashBytes([]byte(wContent)),
			Type:         types.BlockType(kind),
			Language:     language,
			SymbolName:   symbol,
			ParentSymbol: parent,
			ChunkIndex:   i,
			Tokens:       types.EstimateTokens(wContent),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return blocks
}

// window is a half-open line span relative to the node start.
type window struct {
	start, end int
}

// splitWindows walks lines accumulating estimated tokens until the target is
// reached, then emits a window padded by overlap tokens on both sides and
// clipped to the node range. The cursor advances to the unpadded window end,
// so consecutive windows share the overlap region.
func splitWindows(lines []string, targetTokens, overlapTokens int) []window {
	lineTokens := make([]int, len(lines))
	for i, l := range lines {
		lineTokens[i] = types.EstimateTokens(l)
	}

	var windows []window
	cursor := 0
	for cursor < len(lines) {
		end := cursor
		acc := 0
		for end < len(lines) && acc < targetTokens {
			acc += lineTokens[end]
			end++
		}

		ws := cursor
		pad := 0
		for ws > 0 && pad < overlapTokens {
			ws--
			pad += lineTokens[ws]
		}
		we := end
		pad = 0
		for we < len(lines) && pad < overlapTokens {
			pad += lineTokens[we]
			we++
		}

		windows = append(windows, window{start: ws, end: we})
		cursor = end
	}
	return windows
}
