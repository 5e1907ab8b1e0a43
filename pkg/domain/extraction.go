package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type ExtractionStatus string

const (
	StatusSuccess        ExtractionStatus = "SUCCESS"
	StatusPartialFailure ExtractionStatus = "PARTIAL_FAILURE"
	StatusNoArtifacts    ExtractionStatus = "NO_ARTIFACTS"
	StatusFailed         ExtractionStatus = "FAILED"
)

// ExtractionRequest is the validated, immutable input of one extraction run.
type ExtractionRequest struct {
	TargetURL string
	Bucket    string
	KeyPrefix string
	Webhook   string
}

// NewExtractionRequest validates raw request fields and normalizes the key
// prefix so exactly one separator joins it to an object basename (empty
// prefix stays empty).
func NewExtractionRequest(rawURL, bucket, prefix, webhook string) (ExtractionRequest, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ExtractionRequest{}, NewError(KindValidation, "url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ExtractionRequest{}, NewError(KindValidation, "url must be a valid absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ExtractionRequest{}, NewError(KindValidation, fmt.Sprintf("unsupported url scheme %q", u.Scheme))
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ExtractionRequest{}, NewError(KindValidation, "s3_bucket is required")
	}
	return ExtractionRequest{
		TargetURL: rawURL,
		Bucket:    bucket,
		KeyPrefix: NormalizePrefix(prefix),
		Webhook:   strings.TrimSpace(webhook),
	}, nil
}

// NormalizePrefix trims separators and guarantees a single trailing "/" for
// non-empty prefixes.
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Artifact is one regular file discovered in the scratch directory after an
// agent run.
type Artifact struct {
	LocalPath    string
	DiscoveredAt time.Time
}

// UploadOutcome records the result of uploading a single artifact. Exactly one
// of ObjectURI/Err is set.
type UploadOutcome struct {
	Artifact  Artifact
	ObjectURI string
	Err       error
}

func (o UploadOutcome) Uploaded() bool { return o.Err == nil }

// FailedFile names a file whose upload failed, for surfacing in responses.
type FailedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ExtractionResult is the terminal outcome of one extraction run.
type ExtractionResult struct {
	Status        ExtractionStatus
	Message       string
	UploadedURIs  []string
	UploadedCount int
	FailedFiles   []FailedFile
}
