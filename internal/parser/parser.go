package parser

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/syntheo/syntheo/pkg/types"
)

// ErrNoGrammar is returned for languages without a registered grammar.
// Callers fall back to whole-file indexing instead of skipping the file.
var ErrNoGrammar = errors.New("no grammar registered")

// Node is a language-neutral view of one parse-tree node. The chunker walks
// these instead of tree-sitter nodes so it can be exercised without a
// grammar.
type Node struct {
	Kind      string
	StartLine int // 1-based
	EndLine   int // 1-based inclusive
	Text      string
	Children  []*Node
}

// Identifier returns the text of the first child whose kind names an
// identifier, or "" when the node has none.
func (n *Node) Identifier() string {
	for _, c := range n.Children {
		switch c.Kind {
		case "identifier", "property_identifier", "type_identifier":
			return c.Text
		}
	}
	return ""
}

// Parser produces a parse tree for source text in a given language.
type Parser interface {
	// Parse returns the tree root. It returns ErrNoGrammar when the
	// language has no grammar and types.ErrParseFailure when the source
	// cannot be parsed.
	Parse(ctx context.Context, src []byte, language string) (*Node, error)
}

// TreeSitter is the tree-sitter backed Parser.
type TreeSitter struct {
	registry *Registry
}

// New creates a parser with all built-in grammars registered.
func New() *TreeSitter {
	return &TreeSitter{registry: DefaultRegistry()}
}

// Parse parses src with the grammar registered for language.
func (p *TreeSitter) Parse(ctx context.Context, src []byte, language string) (*Node, error) {
	lang := p.registry.Grammar(language)
	if lang == nil {
		return nil, fmt.Errorf("%w for %q", ErrNoGrammar, language)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParseFailure, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: empty tree", types.ErrParseFailure)
	}
	return convert(root, src), nil
}

// convert maps the named subtree rooted at n into Nodes. Line numbers are
// converted from tree-sitter's 0-based rows to 1-based lines.
func convert(n *sitter.Node, src []byte) *Node {
	out := &Node{
		Kind:      n.Type(),
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Text:      n.Content(src),
	}

	count := int(n.NamedChildCount())
	if count > 0 {
		out.Children = make([]*Node, 0, count)
		for i := 0; i < count; i++ {
			out.Children = append(out.Children, convert(n.NamedChild(i), src))
		}
	}
	return out
}
