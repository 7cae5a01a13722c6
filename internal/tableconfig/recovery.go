package tableconfig

import (
	"context"
)

// fileState captures what decode found (or didn't) for one file.
type fileState struct {
	exists bool
	valid  bool
	props  *PropertyMap
}

func inspect(ctx context.Context, fs FilesystemAdapter, path string) (fileState, error) {
	exists, err := fs.Exists(ctx, path)
	if err != nil {
		return fileState{}, wrapIOError("exists", err)
	}
	if !exists {
		return fileState{exists: false}, nil
	}

	data, err := fs.Read(ctx, path)
	if err != nil {
		if err == ErrNotFound {
			// Lost between Exists and Read — treat as absent, the race is
			// resolved by the caller's bounded retry.
			return fileState{exists: false}, nil
		}
		return fileState{}, wrapIOError("read", err)
	}

	props, decodeErr := decode(data)
	if decodeErr != nil {
		return fileState{exists: true, valid: false}, nil
	}
	return fileState{exists: true, valid: true, props: props}, nil
}

// RecoverIfNeeded inspects {primary, backup} and restores the invariant
// "primary exists and is valid, no backup" from any intermediate state a
// crash during the update protocol (update.go) could have produced.
//
// RecoverIfNeeded never itself raises ErrInvalidConfig: if neither file is
// usable it leaves the directory as-is and lets the subsequent decode in
// Load report the failure. It is idempotent: a second call against its own
// output is always a no-op.
func RecoverIfNeeded(ctx context.Context, fs FilesystemAdapter, primaryPath, backupPath string) error {
	primary, err := inspect(ctx, fs, primaryPath)
	if err != nil {
		return err
	}
	backup, err := inspect(ctx, fs, backupPath)
	if err != nil {
		return err
	}

	switch {
	case primary.valid && !backup.exists:
		// Healthy: nothing to do.
		return nil

	case primary.valid && backup.exists:
		// Update completed (primary rewritten) but the cleanup step that
		// deletes backup never ran. Backup is now stale; discard it.
		return wrapIOError("delete stale backup", fs.Delete(ctx, backupPath))

	case !primary.valid && backup.valid:
		// Primary is missing or corrupt (crash mid-swap); backup holds a
		// valid pre-image. The backup dominates: restore it as primary.
		if primary.exists {
			if err := fs.Delete(ctx, primaryPath); err != nil {
				return wrapIOError("delete invalid primary", err)
			}
		}
		return wrapIOError("restore backup", fs.Rename(ctx, backupPath, primaryPath))

	default:
		// Neither file is both present and valid. Leave as-is; Load's
		// decode will raise ErrNotFound or ErrInvalidConfig as appropriate.
		return nil
	}
}
