package consumers

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"

	"github.com/clipperhouse/uax29/v2/graphemes"

	"github.com/pk5ls20/echo/gladiator"
	"github.com/pk5ls20/echo/gladiator/ext"
)

// OutgoingFilter mutates the DOM to prune content the viewer cannot see.
// It MUST run before OutgoingSSR in any chain, since it is the
// stage that decides which Extended elements are left untouched for SSR to
// render.
type OutgoingFilter struct {
	Registry *ext.Registry
}

// Process implements gladiator.Consumer.
func (f *OutgoingFilter) Process(el gladiator.Element, _ int) {
	switch v := el.(type) {
	case *gladiator.Extended:
		if v.HasPermission() && v.ExtPermission {
			return // fully permitted, no change
		}
		h, w := uint32(200), uint32(300)
		if v.ExtIDErr == nil {
			h, w = f.Registry.FuzzHW(v.ExtID)
		}
		v.SetSingleAttr("echo-ext-fuzz-hw", fmt.Sprintf("%dx%d", h, w))
		v.ForgetChildren()

	case *gladiator.Standard:
		if v.HasPermission() {
			return
		}
		n := graphemeCount(v.N)
		rounded := nextMultipleOf3(n)
		v.SetSingleAttr("echo-s", strconv.Itoa(rounded))
		v.ForgetChildren()
	}
}

// nextMultipleOf3 rounds n up to the next multiple of 3 (0 stays 0).
func nextMultipleOf3(n int) int {
	r := n % 3
	if r == 0 {
		return n
	}
	return n + (3 - r)
}

// graphemeCount sums grapheme clusters across all descendant text nodes of
// n. Runes are not graphemes: combining marks and ZWJ sequences must count
// as one visible unit.
func graphemeCount(n *html.Node) int {
	var total int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			tokens := graphemes.FromString(n.Data)
			for tokens.Next() {
				total++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return total
}
