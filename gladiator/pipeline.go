package gladiator

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Consumer is one stage of a Chain. Process is invoked
// once per emitted echo element, in chain order, on the single traversal
// thread; it may mutate the element's attributes or children.
type Consumer interface {
	Process(el Element, depth int)
}

// End is the terminal stage of a Chain. Postprocess runs once after the full
// traversal and produces the chain's Output type T.
type End[T any] interface {
	Postprocess(root *html.Node) (T, error)
}

// Chain is a fixed, ordered list of Consumers followed by exactly one End.
// Every stage is a distinct Go value the caller constructs before running the
// chain, so stage-specific state (e.g. IncomingCheck's latched error) remains
// directly readable on the caller's own variable after Run returns — this is
// the Go-idiomatic rendering of the heterogeneous pipeline chain described in
// the design notes, in place of a tagged-variant HList encoding.
type Chain[T any] struct {
	Consumers []Consumer
	End       End[T]
}

// Run classifies root under viewer and feeds every echo element through every
// consumer in order, then asks the End stage to produce the Output.
func (c Chain[T]) Run(root *html.Node, viewer Viewer, logger *slog.Logger) (T, error) {
	Classify(root, viewer, logger, func(el Element, depth int) {
		for _, cons := range c.Consumers {
			cons.Process(el, depth)
		}
	})
	return c.End.Postprocess(root)
}

// Transform parses fragment as an HTML fragment in a body context and runs
// chain over the resulting forest. This is the entry point ingress/egress
// handling uses.
func Transform[T any](fragment string, viewer Viewer, chain Chain[T], logger *slog.Logger) (T, error) {
	var zero T

	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctxNode)
	if err != nil {
		return zero, fmt.Errorf("gladiator: parse fragment: %w", err)
	}

	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	return chain.Run(root, viewer, logger)
}
