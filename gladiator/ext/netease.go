package ext

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"

	"github.com/pk5ls20/echo/gladiator"
)

// NetEaseMusicHandler is the NetEase Music extension (id 3). It renders a
// fixed-size <iframe> embedding the NetEase outchain player.
type NetEaseMusicHandler struct{}

func (NetEaseMusicHandler) ID() uint32               { return 3 }
func (NetEaseMusicHandler) MetaKeys() []string       { return []string{"id"} }
func (NetEaseMusicHandler) EvaluateKeys() []string   { return nil }
func (NetEaseMusicHandler) FuzzHW() (uint32, uint32) { return 200, 300 }

func (NetEaseMusicHandler) CustomValidate(attrs []html.Attribute) error {
	idStr, ok := metaAttr(attrs, "id")
	if !ok {
		return &gladiator.ExtensionError{Kind: gladiator.ExtErrMetaKeyNotExist, ExtID: 3, Key: "id"}
	}
	if _, err := strconv.ParseUint(idStr, 10, 64); err != nil {
		return &gladiator.ExtensionError{Kind: gladiator.ExtErrCustomValidation, ExtID: 3, Key: "id", Msg: "not a valid id"}
	}
	return nil
}

func (NetEaseMusicHandler) Render(_ *RenderContext, attrs []html.Attribute) (string, error) {
	idStr, ok := metaAttr(attrs, "id")
	if !ok {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrMetaKeyNotExist, ExtID: 3, Key: "id"}
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return "", &gladiator.ExtensionError{Kind: gladiator.ExtErrCustomValidation, ExtID: 3, Key: "id", Msg: "not a valid id"}
	}

	auto := "0"
	if boolMeta(attrs, "autoplay") {
		auto = "1"
	}

	src := fmt.Sprintf("//music.163.com/outchain/player?type=2&id=%d&height=66&auto=%s", id, auto)
	return fmt.Sprintf(`<iframe width="330" height="86" src="%s"></iframe>`, html.EscapeString(src)), nil
}
