package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewExtractionRequestValid(t *testing.T) {
	req, err := NewExtractionRequest("https://example.com/event/123", "my-bucket", "ecal/event-123", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Bucket != "my-bucket" {
		t.Errorf("expected bucket my-bucket, got %s", req.Bucket)
	}
	if req.KeyPrefix != "ecal/event-123/" {
		t.Errorf("expected normalized prefix with trailing slash, got %q", req.KeyPrefix)
	}
}

func TestNewExtractionRequestRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		bucket string
	}{
		{"empty url", "", "b"},
		{"relative url", "/event/123", "b"},
		{"no host", "https://", "b"},
		{"bad scheme", "ftp://example.com/x", "b"},
		{"missing bucket", "https://example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewExtractionRequest(tc.url, tc.bucket, "", "")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if KindOf(err) != KindValidation {
				t.Errorf("expected KindValidation, got %s", KindOf(err))
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"   ":          "",
		"a":            "a/",
		"a/":           "a/",
		"/a/b":         "a/b/",
		"a/b///":       "a/b/",
		"  ecal/123  ": "ecal/123/",
	}
	for in, want := range cases {
		if got := NormalizePrefix(in); got != want {
			t.Errorf("NormalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorKindPropagation(t *testing.T) {
	base := NewError(KindConfiguration, "bucket not reachable")
	wrapped := fmt.Errorf("extract: %w", base)
	if KindOf(wrapped) != KindConfiguration {
		t.Errorf("expected KindConfiguration through wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindAgentFailure {
		t.Error("untyped errors should default to KindAgentFailure")
	}
}

func TestWrapErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	e := WrapError(kindForTest(), "reset scratch dir", inner)
	if !errors.Is(e, inner) {
		t.Error("expected wrapped error to unwrap to inner")
	}
	if e.Error() != "reset scratch dir: disk full" {
		t.Errorf("unexpected message: %s", e.Error())
	}
}

func kindForTest() ErrorKind { return KindIO }
