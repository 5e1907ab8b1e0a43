package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"docharvest/pkg/domain"
)

// Manager allocates one uniquely named scratch directory per extraction under
// a fixed root. Per-run directories are what make concurrent extractions safe:
// no run can ever reset or enumerate another run's files.
type Manager struct {
	root   string
	logger *slog.Logger
}

func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: root, logger: logger}
}

// Acquire creates a fresh scratch directory for one extraction run.
func (m *Manager) Acquire() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, domain.WrapError(domain.KindIO, "create work root", err)
	}
	dir := filepath.Join(m.root, uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, domain.WrapError(domain.KindIO, "create scratch directory", err)
	}
	return &Workspace{dir: dir, logger: m.logger}, nil
}

// Workspace is the scratch directory of a single in-flight extraction.
type Workspace struct {
	dir    string
	logger *slog.Logger
}

func (w *Workspace) Dir() string { return w.dir }

// Reset deletes every entry in the scratch directory, creating it if absent.
// Calling Reset on an already-empty directory is a no-op.
func (w *Workspace) Reset() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return domain.WrapError(domain.KindIO, "create scratch directory", err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return domain.WrapError(domain.KindIO, "read scratch directory", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			return domain.WrapError(domain.KindIO, fmt.Sprintf("clear %s", e.Name()), err)
		}
	}
	return nil
}

// ListArtifacts returns the regular files currently in the scratch directory,
// sorted by modification time ascending so responses are deterministic.
// Sub-directories are skipped. An empty directory yields an empty slice, not
// an error; the target site genuinely may have no documents.
func (w *Workspace) ListArtifacts() ([]domain.Artifact, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, domain.WrapError(domain.KindIO, "read scratch directory", err)
	}
	artifacts := make([]domain.Artifact, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// File vanished between ReadDir and Stat; the agent process may
			// still be flushing temp files. Skip it.
			w.logger.Warn("stat artifact failed", "name", e.Name(), "err", err)
			continue
		}
		artifacts = append(artifacts, domain.Artifact{
			LocalPath:    filepath.Join(w.dir, e.Name()),
			DiscoveredAt: info.ModTime(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].DiscoveredAt.Equal(artifacts[j].DiscoveredAt) {
			return artifacts[i].LocalPath < artifacts[j].LocalPath
		}
		return artifacts[i].DiscoveredAt.Before(artifacts[j].DiscoveredAt)
	})
	return artifacts, nil
}

// Remove deletes one artifact, best-effort. A leftover temp file must never
// turn a successful upload into a reported error.
func (w *Workspace) Remove(a domain.Artifact) {
	if err := os.Remove(a.LocalPath); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("remove artifact failed", "path", a.LocalPath, "err", err)
	}
}

// Release tears down the whole scratch directory, best-effort. Runs on every
// terminal outcome so partial downloads never accumulate across requests.
func (w *Workspace) Release() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn("release scratch directory failed", "dir", w.dir, "err", err)
	}
}
