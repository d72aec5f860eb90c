package eval

import (
	"context"
	"os"
	"path/filepath"

	"github.com/picodoc-lang/picodoc/parser"
)

// expandInclude reads, parses, and splices another document. Include paths
// resolve against the root document's directory regardless of nesting.
// Top-level definitions of the included file join the registry before its
// content is spliced.
func (ev *evaluator) expandInclude(ctx context.Context, parent, n *enode, b *builtin) ([]nodeID, outcome, error) {
	if err := ev.validateArgs(n, b); err != nil {
		return nil, 0, err
	}
	file, err := ev.resolveValue(n.call.Arg("file"))
	if err != nil {
		return ev.deferOrFail(n, err)
	}

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(ev.baseDir, file)
	}
	if abs, absErr := filepath.Abs(path); absErr == nil {
		path = abs
	}

	if n.frame.includeDepth() >= ev.maxIncludeDepth {
		return nil, 0, ev.errNode(DepthExceeded, n, n.call.span,
			"include depth limit (%d) exceeded", ev.maxIncludeDepth)
	}
	if path == ev.rootPath || n.frame.onIncludePath(path) {
		return nil, 0, ev.errNode(IncludeCycle, n, n.call.span,
			"circular include detected: %s", file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ev.errNode(IncludeReadError, n, n.call.span,
				"included file not found: %s", file)
		}
		return nil, 0, ev.errNode(IncludeReadError, n, n.call.span,
			"cannot read included file %s: %v", file, err)
	}

	source := string(data)
	doc, err := parser.Parse(source, file)
	if err != nil {
		incErr := ev.errNode(IncludeParseError, n, n.call.span,
			"error in included file: %s", file)
		incErr.Inner = err
		return nil, 0, incErr
	}

	src := &sourceDoc{filename: file, source: source}
	blocks, err := collectDefinitions(ev.reg, doc, src)
	if err != nil {
		return nil, 0, err
	}
	if err := ev.resolveDefaults(ctx); err != nil {
		return nil, 0, err
	}

	f := n.frame.child(n.call.name, n.frame.budget-1)
	f.incPath = path
	ev.logger.Debug("include spliced", "file", file, "depth", f.includeDepth())
	if parent.call == nil {
		return ev.tree.buildBlocks(blocks, f, src), outcomeReplace, nil
	}
	return ev.tree.buildFragment(blocks, f, src), outcomeReplace, nil
}
