package eval

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/picodoc-lang/picodoc/ast"
	"github.com/picodoc-lang/picodoc/parser"
)

// FilterRequest is the data handed to an external filter: the call's
// flattened arguments, its resolved body, and the full environment.
type FilterRequest struct {
	Name    string
	Args    map[string]string
	Body    string
	HasBody bool
	Env     map[string]string
}

// FilterInvoker resolves filter names and runs filter processes. Invoke may
// be called concurrently for distinct requests within one pass.
type FilterInvoker interface {
	// Lookup reports whether a filter exists for the macro name.
	Lookup(name string) bool
	// Invoke runs the filter and returns its output markup.
	Invoke(ctx context.Context, req *FilterRequest) (string, error)
}

// timeoutError marks an invoker error as a time-budget failure.
type timeoutError interface{ Timeout() bool }

// filterJob is one scheduled invocation. Jobs accumulate in document order
// during the walk and run together at the end of the pass.
type filterJob struct {
	parent *enode
	node   *enode
	req    *FilterRequest
	output string
}

// scheduleFilter flattens a filter call's arguments and body and queues the
// invocation. The node waits in Expanding state until the pass's walk ends;
// a call site is never invoked twice.
func (ev *evaluator) scheduleFilter(parent, n *enode) ([]nodeID, outcome, error) {
	args := make(map[string]string, len(n.call.args))
	for _, arg := range n.call.args {
		text, err := ev.resolveValue(arg.Value)
		if err != nil {
			return ev.deferOrFail(n, err)
		}
		args[arg.Name] = text
	}
	body, hasBody, err := ev.filterBody(n)
	if err != nil {
		return ev.deferOrFail(n, err)
	}
	n.state = stateExpanding
	ev.jobs = append(ev.jobs, &filterJob{
		parent: parent,
		node:   n,
		req: &FilterRequest{
			Name:    n.call.name,
			Args:    args,
			Body:    body,
			HasBody: hasBody,
			Env:     ev.env.Snapshot(),
		},
	})
	ev.logger.Debug("filter scheduled", "filter", n.call.name)
	return nil, outcomeScheduled, nil
}

// filterBody flattens the call body to text. A body still holding
// unresolved calls defers the invocation to a later pass.
func (ev *evaluator) filterBody(n *enode) (string, bool, error) {
	if !n.call.hasBody {
		return "", false, nil
	}
	switch body := n.call.body.(type) {
	case *ast.InterpString:
		text, err := ev.resolveParts(body.Parts)
		return text, true, err
	case *ast.RawString:
		return body.Value, true, nil
	}
	if ev.tree.hasPending(n.kids) {
		name, span, _ := ev.firstPending(n.kids)
		return "", true, &errDefer{name: name, span: span}
	}
	var b strings.Builder
	ev.tree.text(n.kids, &b)
	return b.String(), true, nil
}

// runFilters invokes every scheduled job concurrently, then splices the
// outputs back in document order.
func (ev *evaluator) runFilters(ctx context.Context) error {
	if len(ev.jobs) == 0 {
		return nil
	}
	jobs := ev.jobs
	ev.jobs = nil

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			out, err := ev.invoker.Invoke(gctx, job.req)
			if err != nil {
				return ev.filterError(job.node, err)
			}
			job.output = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, job := range jobs {
		if err := ev.spliceFilterOutput(job); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) filterError(n *enode, err error) *Error {
	kind := FilterExecutionError
	if t, ok := err.(timeoutError); ok && t.Timeout() {
		kind = FilterTimeout
	}
	return ev.errNode(kind, n, n.call.span, "%s", err.Error())
}

// spliceFilterOutput parses a filter's output markup and splices it where
// the call stood. A registered depth of zero seals the output against
// re-expansion.
func (ev *evaluator) spliceFilterOutput(job *filterJob) error {
	n := job.node
	virtual := "<" + n.call.name + " output>"
	doc, err := parser.Parse(job.output, virtual)
	if err != nil {
		ferr := ev.errNode(FilterExecutionError, n, n.call.span,
			"filter '%s' produced invalid markup", n.call.name)
		ferr.Inner = err
		return ferr
	}

	budget := n.frame.budget - 1
	final := false
	if d, ok := ev.filterDepths[n.call.name]; ok {
		if d == 0 {
			final = true
		}
		if d < budget {
			budget = d
		}
	}
	f := n.frame.child(n.call.name, budget)
	src := &sourceDoc{filename: virtual, source: job.output}
	var ids []nodeID
	if job.parent.call == nil {
		ids = ev.tree.buildBlocks(doc.Children, f, src)
	} else {
		ids = ev.tree.buildFragment(doc.Children, f, src)
	}
	if final {
		ev.tree.markFinal(ids)
	}

	for i, id := range job.parent.kids {
		if ev.tree.node(id) == n {
			job.parent.kids = spliceKids(job.parent.kids, i, ids)
			ev.transitions++
			break
		}
	}
	ev.logger.Debug("filter output spliced",
		"filter", n.call.name, "nodes", len(ids), "final", final)
	return nil
}
