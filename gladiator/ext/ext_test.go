package ext

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func attr(key, val string) html.Attribute { return html.Attribute{Key: key, Val: val} }

func TestRegistryRejectsDuplicateID(t *testing.T) {
	_, err := New(ResourceHandler{}, ResourceHandler{})
	if err == nil {
		t.Fatal("expected duplicate id error, got nil")
	}
}

func TestRegistryValidateAttrMissingMetaKey(t *testing.T) {
	r, err := New(ResourceHandler{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.ValidateAttr(1, nil); err == nil {
		t.Fatal("expected missing meta key error")
	}
}

func TestRegistryValidateAttrEvaluateKeyRejected(t *testing.T) {
	r, err := New(ResourceHandler{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	attrs := []html.Attribute{
		attr("echo-ext-meta-res-id", "42"),
		attr("echo-ext-meta-res-url", "https://evil.example/"),
	}
	if err := r.ValidateAttr(1, attrs); err == nil {
		t.Fatal("expected evaluate key rejected")
	}
}

func TestResourceHandlerRenderSignsURL(t *testing.T) {
	r, err := New(ResourceHandler{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	signer := NewHMACResourceSigner([]byte("secret"), "/api/v1/resource")
	rc := &RenderContext{Context: context.Background(), UserID: 7, Signer: signer}
	out, err := r.Render(1, rc, []html.Attribute{attr("echo-ext-meta-res-id", "42")})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "<img src=") || !strings.Contains(out, "id=42") {
		t.Fatalf("unexpected render output: %q", out)
	}
}

func TestBilibiliHandlerAcceptsAVID(t *testing.T) {
	h := BilibiliHandler{}
	attrs := []html.Attribute{attr("echo-ext-meta-vid", "av170001")}
	if err := h.CustomValidate(attrs); err != nil {
		t.Fatalf("CustomValidate: %v", err)
	}
	out, err := h.Render(nil, attrs)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "aid=170001") {
		t.Fatalf("expected aid=170001 in render output, got %q", out)
	}
}

func TestBilibiliHandlerRejectsInvalidVid(t *testing.T) {
	h := BilibiliHandler{}
	attrs := []html.Attribute{attr("echo-ext-meta-vid", "not-a-vid")}
	if err := h.CustomValidate(attrs); err == nil {
		t.Fatal("expected invalid vid to be rejected")
	}
}

func TestNetEaseMusicHandlerRender(t *testing.T) {
	h := NetEaseMusicHandler{}
	attrs := []html.Attribute{attr("echo-ext-meta-id", "12345"), attr("echo-ext-meta-autoplay", "true")}
	out, err := h.Render(nil, attrs)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "id=12345") || !strings.Contains(out, "auto=1") {
		t.Fatalf("unexpected render output: %q", out)
	}
}

func TestHMACResourceSignerVerify(t *testing.T) {
	secret := []byte("topsecret")
	signer := NewHMACResourceSigner(secret, "/api/v1/resource")
	url, err := signer.Sign(context.Background(), 1, time.Minute, 99)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	var expiry int64
	var sig string
	for _, part := range strings.Split(strings.SplitN(url, "?", 2)[1], "&") {
		kv := strings.SplitN(part, "=", 2)
		switch kv[0] {
		case "exp":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				t.Fatalf("parse exp: %v", err)
			}
			expiry = parsed
		case "sig":
			sig = kv[1]
		}
	}
	if !VerifyResourceSignature(secret, 1, 99, expiry, sig) {
		t.Fatal("expected signature to verify")
	}
	if VerifyResourceSignature([]byte("wrong"), 1, 99, expiry, sig) {
		t.Fatal("expected signature to fail under wrong secret")
	}
}
