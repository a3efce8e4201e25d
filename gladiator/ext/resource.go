package ext

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/pk5ls20/echo/gladiator"
)

// ResourceSignTTL is how long a signed resource URL stays valid.
const ResourceSignTTL = 5 * time.Minute

// ResourceHandler is the Resource extension (id 1). It parses
// echo-ext-meta-res-id, obtains a signed URL from the RenderContext's
// ResourceSigner, and renders an <img>. echo-ext-meta-res-url is an
// evaluate-key: the server computes it and the client must never supply it.
type ResourceHandler struct{}

func (ResourceHandler) ID() uint32                 { return 1 }
func (ResourceHandler) MetaKeys() []string         { return []string{"res-id"} }
func (ResourceHandler) EvaluateKeys() []string     { return []string{"res-url"} }
func (ResourceHandler) FuzzHW() (uint32, uint32)   { return 200, 300 }
func (ResourceHandler) CustomValidate([]html.Attribute) error { return nil }

func (ResourceHandler) Render(rc *RenderContext, attrs []html.Attribute) (string, error) {
	resIDStr, ok := metaAttr(attrs, "res-id")
	if !ok {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrMetaKeyNotExist, ExtID: 1, Key: "res-id"}
	}
	resID, err := strconv.ParseInt(resIDStr, 10, 64)
	if err != nil {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrCustomValidation, ExtID: 1, Key: "res-id", Msg: "not a valid signed 64-bit integer"}
	}

	if rc == nil || rc.Signer == nil {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrResourceSigner, ExtID: 1, Cause: fmt.Errorf("no resource signer configured")}
	}

	url, err := rc.Signer.Sign(rc.Context, rc.UserID, ResourceSignTTL, resID)
	if err != nil {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrResourceSigner, ExtID: 1, Cause: err}
	}

	return fmt.Sprintf(`<img src="%s"/>`, html.EscapeString(url)), nil
}
