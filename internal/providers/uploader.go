package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"docharvest/pkg/domain"
)

// Uploader writes local files into a bucket. Implementations classify their
// failures: bucket/credential problems are domain.KindConfiguration (fatal for
// the whole batch), per-object write failures are domain.KindObjectWrite.
type Uploader interface {
	// ValidateBucket is a fail-fast precondition gate, called once before a
	// batch rather than failing identically N times per file.
	ValidateBucket(ctx context.Context, bucket string) error

	// Upload stores one local file under bucket/key and returns the object URI.
	Upload(ctx context.Context, bucket string, key string, localPath string) (string, error)
}

// ObjectKey joins the normalized prefix with the artifact's basename. Two
// artifacts sharing a basename map to the same key: last write wins. The
// listing order (oldest modification first) makes the newest download the
// surviving object.
func ObjectKey(prefix string, localPath string) string {
	return domain.NormalizePrefix(prefix) + filepath.Base(localPath)
}

// UploadAll uploads each artifact independently and returns one outcome per
// artifact, in input order. One failed upload never aborts the rest.
func UploadAll(ctx context.Context, u Uploader, artifacts []domain.Artifact, bucket string, prefix string) []domain.UploadOutcome {
	outcomes := make([]domain.UploadOutcome, 0, len(artifacts))
	for _, a := range artifacts {
		key := ObjectKey(prefix, a.LocalPath)
		uri, err := u.Upload(ctx, bucket, key, a.LocalPath)
		if err != nil {
			outcomes = append(outcomes, domain.UploadOutcome{
				Artifact: a,
				Err:      domain.WrapError(domain.KindObjectWrite, fmt.Sprintf("upload %s", filepath.Base(a.LocalPath)), err),
			})
			continue
		}
		outcomes = append(outcomes, domain.UploadOutcome{Artifact: a, ObjectURI: uri})
	}
	return outcomes
}
