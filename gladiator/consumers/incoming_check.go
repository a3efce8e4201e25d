// Package consumers implements the built-in pipeline stages: IncomingCheck,
// ResourceIDExtractor, OutgoingFilter, OutgoingSSR, and the NoopEnd and
// CollectEnd terminal stages.
package consumers

import (
	"github.com/pk5ls20/echo/gladiator"
	"github.com/pk5ls20/echo/gladiator/ext"
)

// IncomingCheck validates permission, extension-permission, extension-id
// parsing, and extension attribute shape for every echo element, latching
// the first error it finds. It never mutates the DOM.
type IncomingCheck struct {
	Registry *ext.Registry
	err      error
}

// Process implements gladiator.Consumer.
func (c *IncomingCheck) Process(el gladiator.Element, depth int) {
	if c.err != nil {
		return // first error wins; never overwritten
	}

	if depth > 1 {
		c.err = gladiator.NewRecursionError(depth)
		return
	}
	if !el.HasPermission() {
		c.err = gladiator.ErrPermissionDenied
		return
	}

	extEl, ok := el.(*gladiator.Extended)
	if !ok {
		return
	}

	if !extEl.ExtPermission {
		c.err = gladiator.ErrExtPermissionNotMatched
		return
	}
	if extEl.ExtIDErr != nil {
		c.err = &gladiator.IncomingCheckError{Kind: gladiator.ErrKindInvalidExtID, Cause: extEl.ExtIDErr}
		return
	}
	if err := c.Registry.ValidateAttr(extEl.ExtID, extEl.Attrs()); err != nil {
		c.err = &gladiator.IncomingCheckError{Kind: gladiator.ErrKindExtCheckError, Cause: err}
	}
}

// Err returns the first latched error, or nil if none occurred.
func (c *IncomingCheck) Err() error { return c.err }
