// Package gladiator implements the echo content pipeline: a DOM classifier
// and a heterogeneous, statically-typed chain of stage processors that
// validate permissions, extract referenced resources, and render server-side
// extension widgets into a parsed HTML fragment.
package gladiator

import "golang.org/x/net/html"

// Element is either a Standard or an Extended echo element, as classified by
// Classify. Consumers never construct Elements themselves.
type Element interface {
	Node() *html.Node
	HasPermission() bool
}

// Standard is an echo element carrying only echo-pm (`<span echo-pm="…">`).
type Standard struct {
	N          *html.Node
	Permission bool
}

func (s *Standard) Node() *html.Node    { return s.N }
func (s *Standard) HasPermission() bool { return s.Permission }

// ForgetChildren detaches all of the node's children. x/net/html.RemoveChild
// already clears the detached node's Parent/PrevSibling/NextSibling, which is
// exactly the "former children's parent back-reference is cleared" invariant.
func (s *Standard) ForgetChildren() {
	n := s.N
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// SetSingleAttr replaces the node's attribute list with exactly one
// attribute. Used by OutgoingFilter to install the echo-s / echo-ext-fuzz-hw
// placeholders.
func (s *Standard) SetSingleAttr(key, val string) {
	s.N.Attr = []html.Attribute{{Key: key, Val: val}}
}

// Extended is an echo element that also carries echo-ext-id, delegating its
// rendering to an extension plugin.
type Extended struct {
	Standard
	ExtID         uint32
	ExtIDErr      error
	ExtPermission bool
}

// Attrs returns the node's current attribute list (for registry validation
// and rendering, which only ever read echo-ext-meta-* attributes).
func (e *Extended) Attrs() []html.Attribute { return e.N.Attr }

// GetAttr returns the value of the named attribute on n, if present.
func GetAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttrPrefixed reports whether n carries any attribute whose name starts
// with prefix.
func HasAttrPrefixed(n *html.Node, prefix string) bool {
	for _, a := range n.Attr {
		if len(a.Key) >= len(prefix) && a.Key[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
