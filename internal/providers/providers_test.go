package providers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docharvest/pkg/domain"
)

type fakeUploader struct {
	failKeys map[string]bool
	calls    []string
}

func (f *fakeUploader) ValidateBucket(ctx context.Context, bucket string) error { return nil }

func (f *fakeUploader) Upload(ctx context.Context, bucket, key, localPath string) (string, error) {
	f.calls = append(f.calls, key)
	if f.failKeys[key] {
		return "", errors.New("injected write failure")
	}
	return "s3://" + bucket + "/" + key, nil
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "/tmp/x/doc.pdf", "doc.pdf"},
		{"ecal/event-1", "/tmp/x/doc.pdf", "ecal/event-1/doc.pdf"},
		{"ecal/event-1/", "/tmp/x/doc.pdf", "ecal/event-1/doc.pdf"},
		{"/ecal/", "doc.pdf", "ecal/doc.pdf"},
	}
	for _, tc := range cases {
		if got := ObjectKey(tc.prefix, tc.path); got != tc.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tc.prefix, tc.path, got, tc.want)
		}
	}
}

func TestUploadAllIndependentFailures(t *testing.T) {
	fake := &fakeUploader{failKeys: map[string]bool{"p/b.pdf": true}}
	artifacts := []domain.Artifact{
		{LocalPath: "/w/a.pdf"},
		{LocalPath: "/w/b.pdf"},
		{LocalPath: "/w/c.pdf"},
	}

	outcomes := UploadAll(context.Background(), fake, artifacts, "bkt", "p")
	if len(outcomes) != 3 {
		t.Fatalf("expected one outcome per artifact, got %d", len(outcomes))
	}
	if !outcomes[0].Uploaded() || outcomes[0].ObjectURI != "s3://bkt/p/a.pdf" {
		t.Errorf("outcome 0: %+v", outcomes[0])
	}
	if outcomes[1].Uploaded() {
		t.Error("outcome 1 should have failed")
	}
	if domain.KindOf(outcomes[1].Err) != domain.KindObjectWrite {
		t.Errorf("expected KindObjectWrite, got %s", domain.KindOf(outcomes[1].Err))
	}
	if !strings.Contains(outcomes[1].Err.Error(), "b.pdf") {
		t.Errorf("failure detail should name the file: %v", outcomes[1].Err)
	}
	if !outcomes[2].Uploaded() {
		t.Error("failure of one upload must not abort the rest")
	}
	if len(fake.calls) != 3 {
		t.Errorf("expected 3 upload attempts, got %d", len(fake.calls))
	}
}

func TestUploadAllDuplicateBasenamesLastWriteWins(t *testing.T) {
	fake := &fakeUploader{}
	artifacts := []domain.Artifact{
		{LocalPath: "/w/old/doc.pdf"},
		{LocalPath: "/w/new/doc.pdf"},
	}
	outcomes := UploadAll(context.Background(), fake, artifacts, "bkt", "")
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	// Both map to the same key; the later upload overwrites the earlier one.
	if outcomes[0].ObjectURI != outcomes[1].ObjectURI {
		t.Errorf("duplicate basenames must collide on the same key: %q vs %q",
			outcomes[0].ObjectURI, outcomes[1].ObjectURI)
	}
}

func TestLocalUploaderRoundTrip(t *testing.T) {
	root := t.TempDir()
	u := NewLocalUploader(root)
	ctx := context.Background()

	if err := u.ValidateBucket(ctx, "bkt"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	src := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(src, []byte("pdf bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	uri, err := u.Upload(ctx, "bkt", "ecal/doc.pdf", src)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Errorf("expected file:// URI, got %s", uri)
	}

	stored, err := os.ReadFile(filepath.Join(root, "bkt", "ecal", "doc.pdf"))
	if err != nil {
		t.Fatalf("read stored object: %v", err)
	}
	if string(stored) != "pdf bytes" {
		t.Errorf("stored content mismatch: %q", stored)
	}
}

func TestLocalUploaderMissingSource(t *testing.T) {
	u := NewLocalUploader(t.TempDir())
	if _, err := u.Upload(context.Background(), "bkt", "k", "/does/not/exist.pdf"); err == nil {
		t.Fatal("expected error for missing local file")
	}
}
