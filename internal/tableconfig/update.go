package tableconfig

import (
	"context"
	"path/filepath"
)

func paths(dir string) (primary, backup string) {
	return filepath.Join(dir, PrimaryFileName), filepath.Join(dir, BackupFileName)
}

// Create writes props (augmented with a computed checksum) directly to the
// primary file. It fails with ErrAlreadyExists if the directory already has
// an initialized configuration.
func Create(ctx context.Context, fs FilesystemAdapter, dir string, props *PropertyMap) error {
	primary, _ := paths(dir)

	exists, err := fs.Exists(ctx, primary)
	if err != nil {
		return wrapIOError("exists", err)
	}
	if exists {
		return ErrAlreadyExists
	}

	return wrapIOError("write primary", fs.Write(ctx, primary, encode(props)))
}

// Update merge-assigns delta into the current valid configuration and
// rewrites the primary file via the swap protocol.
func Update(ctx context.Context, fs FilesystemAdapter, dir string, delta map[string]string) error {
	return swap(ctx, fs, dir, func(current *PropertyMap) *PropertyMap {
		next := current.Clone()
		for k, v := range delta {
			next.Set(k, v)
		}
		return next
	})
}

// DeleteKeys removes the listed keys from the current valid configuration
// and rewrites the primary file via the swap protocol. Unknown keys are
// silently ignored.
func DeleteKeys(ctx context.Context, fs FilesystemAdapter, dir string, keys []string) error {
	return swap(ctx, fs, dir, func(current *PropertyMap) *PropertyMap {
		next := current.Clone()
		for _, k := range keys {
			next.Delete(k)
		}
		return next
	})
}

// swap implements the update protocol common to Update and DeleteKeys:
//
//  1. Load current config (read path, includes recovery).
//  2. Compute new config via mutate.
//  3. Rename primary -> backup (backup now holds the pre-image).
//  4. Write new config to primary.
//  5. Delete backup.
//
// The three crash points between these steps and their reconciliation are
// handled entirely by RecoverIfNeeded on the next read or write — swap
// itself does not special-case failure, it just returns the error and
// leaves the directory in whatever state the crash would have produced.
func swap(ctx context.Context, fs FilesystemAdapter, dir string, mutate func(*PropertyMap) *PropertyMap) error {
	primary, backup := paths(dir)

	current, err := loadValid(ctx, fs, primary, backup)
	if err != nil {
		return err
	}

	next := mutate(current)
	next.Delete(ChecksumKey)

	if err := fs.Rename(ctx, primary, backup); err != nil {
		return wrapIOError("stage backup", err)
	}
	if err := fs.Write(ctx, primary, encode(next)); err != nil {
		return wrapIOError("write primary", err)
	}
	return wrapIOError("delete backup", fs.Delete(ctx, backup))
}
