package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

// LocalFSStore is a BlobStore rooted at a directory on disk. Keys map
// directly onto paths under root. Put is made atomic via a temp-file +
// rename so readers never see a partially written object.
type LocalFSStore struct {
	root string
}

// NewLocalFSStore creates a store rooted at root, creating it if needed.
func NewLocalFSStore(root string) (*LocalFSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, pipelineerr.IO("blobstore_root_failed", "failed to create blobstore root", err)
	}
	return &LocalFSStore{root: root}, nil
}

func (s *LocalFSStore) objectPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalFSStore) Get(_ context.Context, key, destDir string) (string, error) {
	src := s.objectPath(key)
	if _, err := os.Stat(src); err != nil {
		return "", pipelineerr.IO("blob_not_found", "object not found at key "+key, err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", pipelineerr.IO("blob_mkdir_failed", "failed to create destination directory", err)
	}
	dst := filepath.Join(destDir, filepath.Base(key))

	in, err := os.Open(src)
	if err != nil {
		return "", pipelineerr.IO("blob_open_failed", "failed to open source object", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", pipelineerr.IO("blob_create_failed", "failed to create destination file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", pipelineerr.IO("blob_copy_failed", "failed to copy object to destination", err)
	}
	return dst, nil
}

func (s *LocalFSStore) Put(_ context.Context, localPath, key string) error {
	dst := s.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return pipelineerr.IO("blob_mkdir_failed", "failed to create object directory", err)
	}

	tmp := dst + ".uploading"
	in, err := os.Open(localPath)
	if err != nil {
		return pipelineerr.IO("blob_open_failed", "failed to open local file for upload", err)
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return pipelineerr.IO("blob_create_failed", "failed to create temp object", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return pipelineerr.IO("blob_copy_failed", "failed to write object", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return pipelineerr.IO("blob_close_failed", "failed to finalize object", err)
	}

	// Atomic publish: rename is atomic on the same filesystem, so
	// readers never observe a partially written object.
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return pipelineerr.IO("blob_rename_failed", "failed to publish object", err)
	}
	return nil
}
