// Package sanitize applies a fixed allow-list of tags, attributes, URL
// schemes, and CSS properties to raw user-authored HTML. The result is
// deterministic and idempotent.
package sanitize

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// echoExtMetaKeys are the concrete echo-ext-meta-<key> attribute names the
// built-in extensions read (gladiator/ext). bluemonday allow-lists attribute
// names explicitly rather than by prefix pattern, so the echo-ext-meta-
// prefix is admitted as this enumeration instead of a wildcard.
var echoExtMetaKeys = []string{
	"echo-ext-meta-res-id",
	"echo-ext-meta-vid",
	"echo-ext-meta-autoplay",
	"echo-ext-meta-simple",
	"echo-ext-meta-id",
}

// New builds the echo-post sanitization policy.
func New() *Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"blockquote", "p", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "hr", "br",
		"strong", "em", "s", "u", "code", "a", "span",
		// Extended echo elements are <div> nodes and the Resource extension
		// renders an <img>; neither would survive sanitization without these.
		"div", "img",
	)

	p.AllowAttrs("target").OnElements("a")
	p.AllowAttrs("class").OnElements("code")
	p.AllowAttrs("src").OnElements("img")

	p.AllowAttrs("style").Globally()
	p.AllowAttrs("echo-ext-id").Matching(regexp.MustCompile(`^[0-9]+$`)).Globally()
	p.AllowAttrs("echo-pm").Matching(regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)).Globally()
	p.AllowAttrs(echoExtMetaKeys...).Globally()

	p.AllowURLSchemes("http", "https")
	// Signed resource URLs are site-relative, e.g. /api/v1/resource?id=…
	p.AllowRelativeURLs(true)

	p.AllowStyles("color").Globally()

	return &Policy{p: p}
}

// Policy wraps a configured bluemonday.Policy carrying the echo allow-list.
type Policy struct {
	p *bluemonday.Policy
}

// Sanitize applies the allow-list to raw, stripping disallowed tags (content
// preserved, except for elements such as script and style whose content
// bluemonday drops as well) and dropping disallowed attributes. sanitize(sanitize(x)) ==
// sanitize(x): bluemonday policies are idempotent by construction, since a
// second pass over already-allowed markup can only re-apply the same rules.
func (s *Policy) Sanitize(raw string) string {
	return s.p.Sanitize(raw)
}
