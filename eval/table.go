package eval

import (
	"strings"
	"unicode"

	"github.com/picodoc-lang/picodoc/ast"
)

// expandTable rewrites a pipe-form table body into explicit rows and cells:
// newlines separate rows, pipes separate cells, and the first row becomes
// the header. Macro calls in cells stay unexpanded for later passes. A body
// with no pipes passes through to the plain render path.
func (ev *evaluator) expandTable(n *enode) ([]nodeID, bool) {
	if n.call.body != nil || !ev.hasPipe(n.kids) {
		return nil, false
	}

	rows := ev.pipeRows(n.kids)
	rowIDs := make([]nodeID, 0, len(rows))
	for r, row := range rows {
		cellName := "td"
		if r == 0 {
			cellName = "th"
		}
		cellIDs := make([]nodeID, 0, len(row))
		for _, cell := range row {
			cellIDs = append(cellIDs, ev.newSynthetic(cellName, cell, n))
		}
		rowIDs = append(rowIDs, ev.newSynthetic("tr", cellIDs, n))
	}

	table := &enode{state: stateExpanded, frame: n.frame, doc: n.doc, call: &callNode{
		name:      n.call.name,
		args:      n.call.args,
		hasBody:   true,
		bodySpan:  n.call.bodySpan,
		bracketed: n.call.bracketed,
		span:      n.call.span,
	}, kids: rowIDs}
	return []nodeID{ev.tree.add(table)}, true
}

// newSynthetic builds a Pending row or cell node around existing children.
func (ev *evaluator) newSynthetic(name string, kids []nodeID, table *enode) nodeID {
	span := table.call.span
	if len(kids) > 0 {
		first := ev.tree.node(kids[0])
		if first.call != nil {
			span = first.call.span
		} else if first.lit != nil {
			span = first.lit.Span()
		}
	}
	return ev.tree.add(&enode{state: statePending, frame: table.frame, doc: table.doc, call: &callNode{
		name:     name,
		hasBody:  true,
		bodySpan: span,
		span:     span,
	}, kids: kids})
}

// hasPipe reports whether any direct text child contains a cell separator.
func (ev *evaluator) hasPipe(ids []nodeID) bool {
	for _, id := range ids {
		n := ev.tree.node(id)
		if n.call != nil {
			continue
		}
		if t, ok := n.lit.(*ast.Text); ok && strings.Contains(t.Value, "|") {
			return true
		}
	}
	return false
}

// pipeRows splits body nodes into rows of cells. Text splits at newlines
// and pipes; any other node joins the current cell.
func (ev *evaluator) pipeRows(ids []nodeID) [][][]nodeID {
	rows := [][][]nodeID{{{}}}
	for _, id := range ids {
		n := ev.tree.node(id)
		t, isText := n.lit.(*ast.Text)
		if n.call != nil || !isText {
			last := len(rows) - 1
			cell := len(rows[last]) - 1
			rows[last][cell] = append(rows[last][cell], id)
			continue
		}
		for i, line := range strings.Split(t.Value, "\n") {
			if i > 0 {
				rows = append(rows, [][]nodeID{{}})
			}
			for j, piece := range strings.Split(line, "|") {
				last := len(rows) - 1
				if j > 0 {
					rows[last] = append(rows[last], []nodeID{})
				}
				if piece != "" {
					cell := len(rows[last]) - 1
					rows[last][cell] = append(rows[last][cell],
						ev.tree.newText(piece, t.Loc, n.frame, n.doc))
				}
			}
		}
	}

	rows = dropEmptyRows(rows)
	for _, row := range rows {
		for i := range row {
			row[i] = ev.trimCell(row[i])
		}
	}
	return dropEmptyRows(rows)
}

func dropEmptyRows(rows [][][]nodeID) [][][]nodeID {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if len(cell) > 0 {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// trimCell strips whitespace from the text at each edge of a cell,
// dropping edge nodes that empty out.
func (ev *evaluator) trimCell(cell []nodeID) []nodeID {
	for len(cell) > 0 {
		n := ev.tree.node(cell[0])
		t, ok := n.lit.(*ast.Text)
		if !ok {
			break
		}
		trimmed := strings.TrimLeftFunc(t.Value, unicode.IsSpace)
		if trimmed == "" {
			cell = cell[1:]
			continue
		}
		if trimmed != t.Value {
			cell[0] = ev.tree.newText(trimmed, t.Loc, n.frame, n.doc)
		}
		break
	}
	for len(cell) > 0 {
		n := ev.tree.node(cell[len(cell)-1])
		t, ok := n.lit.(*ast.Text)
		if !ok {
			break
		}
		trimmed := strings.TrimRightFunc(t.Value, unicode.IsSpace)
		if trimmed == "" {
			cell = cell[:len(cell)-1]
			continue
		}
		if trimmed != t.Value {
			cell[len(cell)-1] = ev.tree.newText(trimmed, t.Loc, n.frame, n.doc)
		}
		break
	}
	return cell
}
