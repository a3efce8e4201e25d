package consumers

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pk5ls20/echo/gladiator"
	"github.com/pk5ls20/echo/gladiator/ext"
)

// OutgoingSSR renders permitted Extended elements' widget HTML into the DOM.
// It MUST run after OutgoingFilter: elements OutgoingFilter has already
// replaced carry a single echo-ext-fuzz-hw attribute, which this stage uses
// as the "already filtered, skip" signal.
//
// It does not clear an element's existing children before appending the
// rendered fragment's children. OutgoingFilter leaves fully permitted
// Extended elements untouched, so any children such an element already has
// are kept and the rendered children follow them.
type OutgoingSSR struct {
	Registry *ext.Registry
	RC       *ext.RenderContext

	firstErr error
}

// Process implements gladiator.Consumer.
func (s *OutgoingSSR) Process(el gladiator.Element, _ int) {
	if s.firstErr != nil {
		return
	}

	extEl, ok := el.(*gladiator.Extended)
	if !ok {
		return
	}

	if _, filtered := gladiator.GetAttr(extEl.N, "echo-ext-fuzz-hw"); filtered {
		return
	}

	if extEl.ExtIDErr != nil {
		s.firstErr = &gladiator.ExtensionError{Kind: gladiator.ExtErrIDTransUsize}
		return
	}

	rendered, err := s.Registry.Render(extEl.ExtID, s.RC, extEl.Attrs())
	if err != nil {
		s.firstErr = err
		return
	}

	ctxNode := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	children, err := html.ParseFragment(strings.NewReader(rendered), ctxNode)
	if err != nil {
		s.firstErr = &gladiator.ExtensionError{Kind: gladiator.ExtErrFragDomMissingChild, Cause: err}
		return
	}

	for _, c := range children {
		extEl.N.AppendChild(c)
	}
}

// Err returns the first latched error, or nil if none occurred.
func (s *OutgoingSSR) Err() error { return s.firstErr }
