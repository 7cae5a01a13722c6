// Package tableconfig implements the durable table-configuration store: the
// hoodie.properties-style identity file that records a managed table's name
// and schema-adjacent metadata on a (possibly distributed) filesystem.
//
// The hard part is not the key/value model but the crash-consistent update
// protocol (internal/tableconfig/update.go), its recovery protocol on read
// (internal/tableconfig/recovery.go), and concurrent reader/writer safety
// over a substrate that offers only rename and create-overwrite.
package tableconfig

import (
	"context"
	"os"
	"path/filepath"

	"github.com/latticedb/lattice/internal/storage"
)

// FilesystemAdapter is the narrow capability the update and recovery
// protocols are built against: exists, read, write (create/truncate),
// rename, delete. Rename is the atomicity primitive, but the protocol does
// not assume it is actually atomic — see ObjectStorageAdapter.
type FilesystemAdapter interface {
	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the full contents of path. Returns ErrNotFound if absent.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write creates or truncates path with data.
	Write(ctx context.Context, path string, data []byte) error

	// Rename moves src to dst. After a successful return dst holds the old
	// src content and src no longer exists; implementations that cannot do
	// this atomically must still guarantee that postcondition.
	Rename(ctx context.Context, src, dst string) error

	// Delete removes path. Missing target is not an error.
	Delete(ctx context.Context, path string) error
}

// LocalFilesystemAdapter implements FilesystemAdapter over the local
// filesystem, where os.Rename is a genuine atomic primitive.
type LocalFilesystemAdapter struct{}

// NewLocalFilesystemAdapter returns a FilesystemAdapter backed by os.*.
func NewLocalFilesystemAdapter() *LocalFilesystemAdapter {
	return &LocalFilesystemAdapter{}
}

func (l *LocalFilesystemAdapter) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *LocalFilesystemAdapter) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (l *LocalFilesystemAdapter) Write(_ context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (l *LocalFilesystemAdapter) Rename(_ context.Context, src, dst string) error {
	return os.Rename(src, dst)
}

func (l *LocalFilesystemAdapter) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ObjectStorageAdapter implements FilesystemAdapter over an
// internal/storage.ObjectStorage (S3Storage or LocalStorage). Object
// stores have no rename primitive, so
// Rename here is implemented as download + conditional-put + delete — a
// deliberately non-atomic sequence. The update protocol in update.go is
// built to tolerate exactly this.
type ObjectStorageAdapter struct {
	backend storage.ObjectStorage
	tmpDir  string
}

// NewObjectStorageAdapter wraps an ObjectStorage backend. tmpDir is used to
// stage bytes through local temp files for Upload/Download, which is the
// shape the ObjectStorage interface requires.
func NewObjectStorageAdapter(backend storage.ObjectStorage, tmpDir string) *ObjectStorageAdapter {
	return &ObjectStorageAdapter{backend: backend, tmpDir: tmpDir}
}

func (o *ObjectStorageAdapter) Exists(ctx context.Context, path string) (bool, error) {
	return o.backend.Exists(ctx, path)
}

func (o *ObjectStorageAdapter) Read(ctx context.Context, path string) ([]byte, error) {
	tmp, err := o.stageTempFile()
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	if err := o.backend.Download(ctx, path, tmp); err != nil {
		if err == storage.ErrObjectNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return os.ReadFile(tmp)
}

func (o *ObjectStorageAdapter) Write(ctx context.Context, path string, data []byte) error {
	tmp, err := o.stageTempFile()
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return o.backend.ConditionalPut(ctx, tmp, path, "")
}

func (o *ObjectStorageAdapter) Rename(ctx context.Context, src, dst string) error {
	data, err := o.Read(ctx, src)
	if err != nil {
		return err
	}
	if err := o.Write(ctx, dst, data); err != nil {
		return err
	}
	return o.backend.Delete(ctx, src)
}

func (o *ObjectStorageAdapter) Delete(ctx context.Context, path string) error {
	return o.backend.Delete(ctx, path)
}

func (o *ObjectStorageAdapter) stageTempFile() (string, error) {
	if err := os.MkdirAll(o.tmpDir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(o.tmpDir, "tableconfig-*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

var _ FilesystemAdapter = (*LocalFilesystemAdapter)(nil)
var _ FilesystemAdapter = (*ObjectStorageAdapter)(nil)
