package providers

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"docharvest/pkg/domain"
)

// localUploader stores objects under rootDir/bucket/key. Dev and test
// stand-in for S3; returns file:// URIs.
type localUploader struct {
	rootDir string
}

func NewLocalUploader(rootDir string) Uploader {
	return &localUploader{rootDir: rootDir}
}

func (u *localUploader) ValidateBucket(ctx context.Context, bucket string) error {
	if err := os.MkdirAll(filepath.Join(u.rootDir, bucket), 0o755); err != nil {
		return domain.WrapError(domain.KindConfiguration, "bucket directory not writable", err)
	}
	return nil
}

func (u *localUploader) Upload(ctx context.Context, bucket string, key string, localPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst := filepath.Join(u.rootDir, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return "", err
	}
	abs, _ := filepath.Abs(dst)
	return "file://" + abs, nil
}
