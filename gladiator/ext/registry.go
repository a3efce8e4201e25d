// Package ext implements the extension registry: a process-static set of
// plugins, each declaring required meta-keys, forbidden evaluate-keys,
// fuzz-placeholder dimensions, and validate/extract/render behaviour.
package ext

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/pk5ls20/echo/gladiator"
)

// RenderContext is passed to every extension's Render call. Signer is the
// external resource-signer collaborator; it may be nil for extensions that
// never need it.
type RenderContext struct {
	Context context.Context
	UserID  int64
	Signer  ResourceSigner
}

// Handler is one registered extension plugin.
type Handler interface {
	// ID is the plugin's stable wire id.
	ID() uint32
	// MetaKeys are attribute suffixes that MUST be present under
	// echo-ext-meta-. Empty means none required.
	MetaKeys() []string
	// EvaluateKeys are attribute suffixes that MUST NOT be present (they are
	// server-computed values the client must not supply). Empty means none
	// forbidden.
	EvaluateKeys() []string
	// FuzzHW is the placeholder (h,w) used when the extension is hidden.
	FuzzHW() (uint32, uint32)
	// CustomValidate runs after the generic meta/evaluate key checks.
	CustomValidate(attrs []html.Attribute) error
	// Render extracts state from attrs and renders the extension's HTML.
	Render(ctx *RenderContext, attrs []html.Attribute) (string, error)
}

// Registry holds the process-static set of known extensions. Construct once
// with New; duplicate ids are rejected at construction time.
type Registry struct {
	order []uint32
	byID  map[uint32]Handler
}

// New builds a Registry from handlers, in registration order. AllExtIDs
// preserves that order rather than relying on map iteration.
func New(handlers ...Handler) (*Registry, error) {
	r := &Registry{byID: make(map[uint32]Handler, len(handlers))}
	for _, h := range handlers {
		id := h.ID()
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("gladiator/ext: duplicate extension id %d", id)
		}
		r.byID[id] = h
		r.order = append(r.order, id)
	}
	return r, nil
}

// AllExtIDs returns the known extension ids in registration order.
func (r *Registry) AllExtIDs() []uint32 {
	out := make([]uint32, len(r.order))
	copy(out, r.order)
	return out
}

// FuzzHW returns the placeholder dimensions for id, or (200,300) for an
// unknown id.
func (r *Registry) FuzzHW(id uint32) (uint32, uint32) {
	h, ok := r.byID[id]
	if !ok {
		return 200, 300
	}
	return h.FuzzHW()
}

// ValidateAttr runs the generic meta/evaluate key checks followed by the
// extension's own custom validation, in that order.
func (r *Registry) ValidateAttr(id uint32, attrs []html.Attribute) error {
	h, ok := r.byID[id]
	if !ok {
		return &gladiator.ExtensionError{Kind: gladiator.ExtErrUnknownExtID, ExtID: id}
	}

	for _, key := range h.MetaKeys() {
		if !hasMetaAttr(attrs, key) {
			return &gladiator.ExtensionError{Kind: gladiator.ExtErrMetaKeyNotExist, ExtID: id, Key: key}
		}
	}
	for _, key := range h.EvaluateKeys() {
		if hasMetaAttr(attrs, key) {
			return &gladiator.ExtensionError{Kind: gladiator.ExtErrEvaluateKeyExist, ExtID: id, Key: key}
		}
	}
	if err := h.CustomValidate(attrs); err != nil {
		var extErr *gladiator.ExtensionError
		if errors.As(err, &extErr) {
			return err
		}
		return &gladiator.ExtensionError{Kind: gladiator.ExtErrCustomValidation, ExtID: id, Msg: err.Error()}
	}
	return nil
}

// Render extracts and renders extension id's HTML.
func (r *Registry) Render(id uint32, rc *RenderContext, attrs []html.Attribute) (string, error) {
	h, ok := r.byID[id]
	if !ok {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrUnknownExtID, ExtID: id}
	}
	return h.Render(rc, attrs)
}

const metaPrefix = "echo-ext-meta-"

func metaAttr(attrs []html.Attribute, key string) (string, bool) {
	for i := len(attrs) - 1; i >= 0; i-- {
		a := attrs[i]
		if len(a.Key) > len(metaPrefix) && a.Key[:len(metaPrefix)] == metaPrefix && a.Key[len(metaPrefix):] == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasMetaAttr(attrs []html.Attribute, key string) bool {
	_, ok := metaAttr(attrs, key)
	return ok
}
