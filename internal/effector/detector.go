package effector

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// Pattern is one migration pattern the detector looks for. Matching is
// intentionally simple (a literal or a node-type probe) — the intelligence
// of "is this worth migrating" lives in the prompt Transform builds from a
// match, not in the detector itself.
type Pattern struct {
	Name     string
	NodeType string // tree-sitter node type to look for; empty means textual-only
	Literal  string // substring probe used for the textual fallback
}

// TreeSitterDetector implements PatternDetector with an AST-based pass per
// supported language and a textual substring fallback for everything else,
// tagging each result with which path produced it.
type TreeSitterDetector struct {
	Patterns []Pattern

	initOnce sync.Once
	goPool   sync.Pool
	pyPool   sync.Pool
	jsPool   sync.Pool
}

func (d *TreeSitterDetector) init() {
	d.initOnce.Do(func() {
		d.goPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(golang.GetLanguage())
			return p
		}
		d.pyPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(python.GetLanguage())
			return p
		}
		d.jsPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(javascript.GetLanguage())
			return p
		}
	})
}

func (d *TreeSitterDetector) poolFor(path string) *sync.Pool {
	switch filepath.Ext(path) {
	case ".go":
		return &d.goPool
	case ".py":
		return &d.pyPool
	case ".js", ".jsx", ".mjs":
		return &d.jsPool
	default:
		return nil
	}
}

// Analyze runs the structural pass when the file's extension has a parser
// pool, degrading to a pure textual scan otherwise (or if the parse
// produces an unusable tree).
func (d *TreeSitterDetector) Analyze(ctx context.Context, path string, content []byte) (DetectionResult, error) {
	d.init()

	pool := d.poolFor(path)
	if pool == nil {
		return d.textual(content), nil
	}

	parserObj := pool.Get()
	parser, ok := parserObj.(*sitter.Parser)
	if !ok {
		return d.textual(content), nil
	}
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return d.textual(content), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return d.textual(content), nil
	}

	result := DetectionResult{Source: "structural"}
	seen := map[string]bool{}
	walk(root, func(n *sitter.Node) {
		for _, p := range d.Patterns {
			if p.NodeType == "" || seen[p.Name] {
				continue
			}
			if n.Type() == p.NodeType {
				nodeText := content[n.StartByte():n.EndByte()]
				if p.Literal == "" || bytes.Contains(nodeText, []byte(p.Literal)) {
					seen[p.Name] = true
					result.PatternsFound = append(result.PatternsFound, p.Name)
				}
			}
		}
	})
	result.PatternCount = len(result.PatternsFound)
	if result.PatternCount == 0 {
		// A clean structural parse that found nothing is still a real
		// (negative) structural result, not a fallback.
		return result, nil
	}
	return result, nil
}

// textual is the degrade path: a substring scan used for unsupported
// languages or any structural-parse failure.
func (d *TreeSitterDetector) textual(content []byte) DetectionResult {
	result := DetectionResult{Source: "textual"}
	text := string(content)
	for _, p := range d.Patterns {
		if p.Literal != "" && strings.Contains(text, p.Literal) {
			result.PatternsFound = append(result.PatternsFound, p.Name)
		}
	}
	result.PatternCount = len(result.PatternsFound)
	return result
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}
