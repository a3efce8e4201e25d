package gladiator

import (
	"log/slog"
	"strconv"

	"golang.org/x/net/html"
)

// Viewer carries the permission and extension id sets the classifier checks
// membership against. Ids are compared as the literal attribute string, since
// permission ids are opaque to the core.
type Viewer struct {
	PermissionIDs map[string]struct{}
	ExtIDs        map[string]struct{}
}

// HasPermission reports whether id is a member of the viewer's permissions.
func (v Viewer) HasPermission(id string) bool {
	_, ok := v.PermissionIDs[id]
	return ok
}

// HasExt reports whether extID (as its decimal attribute string) is a member
// of the viewer's enabled extensions.
func (v Viewer) HasExt(extIDAttr string) bool {
	_, ok := v.ExtIDs[extIDAttr]
	return ok
}

// Classify walks root depth-first and invokes visit for every echo element it
// finds. depth starts at 1 at the root and increments by 1 each time
// an echo element is emitted; children of non-echo nodes inherit their
// parent's depth unchanged.
func Classify(root *html.Node, viewer Viewer, logger *slog.Logger, visit func(el Element, depth int)) {
	if logger == nil {
		logger = slog.Default()
	}

	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		nextDepth := depth

		if n.Type == html.ElementNode && n.Namespace == "" {
			if pm, ok := GetAttr(n, "echo-pm"); ok {
				hasPerm := viewer.HasPermission(pm)

				switch n.Data {
				case "span":
					visit(&Standard{N: n, Permission: hasPerm}, depth)
					nextDepth = depth + 1

				case "div":
					if extIDAttr, ok2 := GetAttr(n, "echo-ext-id"); ok2 {
						extPerm := viewer.HasExt(extIDAttr)
						var extID uint32
						var idErr error
						parsed, err := strconv.ParseUint(extIDAttr, 10, 32)
						if err != nil {
							idErr = err
						} else {
							extID = uint32(parsed)
						}
						ext := &Extended{
							Standard:      Standard{N: n, Permission: hasPerm},
							ExtID:         extID,
							ExtIDErr:      idErr,
							ExtPermission: extPerm,
						}
						visit(ext, depth)
						nextDepth = depth + 1
					} else {
						logger.Debug("gladiator: echo-pm div missing echo-ext-id, skipping", "data", n.Data)
					}

				default:
					logger.Debug("gladiator: echo-pm on unsupported element, skipping", "tag", n.Data)
				}
			}
		}

		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			walk(c, nextDepth)
			c = next
		}
	}

	walk(root, 1)
}
