package consumers

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/pk5ls20/echo/gladiator"
)

// NoopEnd is the End stage used when a chain's only purpose is to run
// consumers for their side effects (e.g. IncomingCheck during ingress).
type NoopEnd struct{}

// Postprocess implements gladiator.End[struct{}].
func (NoopEnd) Postprocess(*html.Node) (struct{}, error) {
	return struct{}{}, nil
}

// CollectEnd drains the document's top-level children and serializes them as
// HTML, returning the resulting string.
type CollectEnd struct{}

// Postprocess implements gladiator.End[string].
func (CollectEnd) Postprocess(root *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		root.RemoveChild(c)
		if err := html.Render(&buf, c); err != nil {
			return "", &gladiator.PipelineSerializeError{Cause: err}
		}
		c = next
	}

	if !utf8.Valid(buf.Bytes()) {
		return "", &gladiator.PipelineSerializeError{Cause: errors.New("output is not valid utf-8")}
	}
	return buf.String(), nil
}
