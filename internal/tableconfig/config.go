package tableconfig

import (
	"context"
	"fmt"
	"time"
)

// Reserved keys participating in protocol logic. All other keys are
// passthrough.
const (
	KeyName                  = "name"
	KeyTableType             = "table.type"
	KeyBaseFileFormat        = "base.file.format"
	KeyTimelineLayoutVersion = "timeline.layout.version"
	KeyArchivelogFolder      = "archivelog.folder"
	KeyPrecombineField       = "precombine.field"
)

// maxReadRetries bounds how many times Load re-runs recovery and decode
// before giving up, tolerating a writer that is rapidly rewriting the
// primary file. 5 attempts with exponential micro-backoff.
const maxReadRetries = 5

// DefaultReservedValues are the built-in reserved-key defaults Create fills
// in for any key the caller didn't already supply. Together with the
// caller-supplied name and the computed checksum, a table created with no
// extra properties ends up with 6 entries: name + these 4 + checksum.
type DefaultReservedValues struct {
	TableType             string
	BaseFileFormat        string
	TimelineLayoutVersion string
	ArchivelogFolder      string
}

// StandardDefaults returns the engine's built-in reserved-key defaults.
// CreateWithDefaults takes the defaults as an explicit argument, so a
// caller can pass different values.
func StandardDefaults() DefaultReservedValues {
	return DefaultReservedValues{
		TableType:             "COPY_ON_WRITE",
		BaseFileFormat:        "PARQUET",
		TimelineLayoutVersion: "1",
		ArchivelogFolder:      "archived",
	}
}

func (d DefaultReservedValues) fill(props *PropertyMap) {
	if _, ok := props.Values[KeyTableType]; !ok {
		props.Set(KeyTableType, d.TableType)
	}
	if _, ok := props.Values[KeyBaseFileFormat]; !ok {
		props.Set(KeyBaseFileFormat, d.BaseFileFormat)
	}
	if _, ok := props.Values[KeyTimelineLayoutVersion]; !ok {
		props.Set(KeyTimelineLayoutVersion, d.TimelineLayoutVersion)
	}
	if _, ok := props.Values[KeyArchivelogFolder]; !ok {
		props.Set(KeyArchivelogFolder, d.ArchivelogFolder)
	}
}

// CreateWithDefaults is Create augmented with the built-in reserved-key
// defaults for any key the caller didn't supply. This is the entry point
// normal table creation should use; Create (update.go) stays a thin
// primitive for callers (and tests) that want to write an exact map.
func CreateWithDefaults(ctx context.Context, fs FilesystemAdapter, dir string, props *PropertyMap, defaults DefaultReservedValues) error {
	augmented := props.Clone()
	defaults.fill(augmented)
	return Create(ctx, fs, dir, augmented)
}

// Config is the read-only snapshot Load returns.
type Config struct {
	props *PropertyMap
}

// Size returns the number of entries, including checksum.
func (c *Config) Size() int {
	return c.props.Size()
}

// Get returns the value for key and whether it was present.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.props.Values[key]
	return v, ok
}

// Name returns the reserved "name" key. Unset is a configuration bug for
// any table that passed through Create, so it returns the empty string
// rather than an error — callers that care should check Get directly.
func (c *Config) Name() string {
	return c.props.Values[KeyName]
}

// TableType returns the reserved "table.type" key.
func (c *Config) TableType() string {
	return c.props.Values[KeyTableType]
}

// BaseFileFormat returns the reserved "base.file.format" key.
func (c *Config) BaseFileFormat() string {
	return c.props.Values[KeyBaseFileFormat]
}

// TimelineLayoutVersion returns the reserved "timeline.layout.version" key.
func (c *Config) TimelineLayoutVersion() string {
	return c.props.Values[KeyTimelineLayoutVersion]
}

// ArchivelogFolder returns the reserved "archivelog.folder" key, and
// whether it is set (DeleteKeys can remove it).
func (c *Config) ArchivelogFolder() (string, bool) {
	v, ok := c.props.Values[KeyArchivelogFolder]
	return v, ok
}

// PrecombineField returns the reserved "precombine.field" key, and whether
// it is set (absent until the caller sets it via Update).
func (c *Config) PrecombineField() (string, bool) {
	v, ok := c.props.Values[KeyPrecombineField]
	return v, ok
}

// Checksum returns the integrity digest recorded in the file.
func (c *Config) Checksum() string {
	return c.props.Values[ChecksumKey]
}

// Raw returns a copy of every entry, reserved and passthrough alike.
func (c *Config) Raw() map[string]string {
	cp := make(map[string]string, len(c.props.Values))
	for k, v := range c.props.Values {
		cp[k] = v
	}
	return cp
}

// Load is the sole public read entry point: it runs the recovery protocol,
// decodes the primary (falling back to backup, retrying the whole sequence
// a bounded number of times to tolerate a concurrent writer), and returns
// an immutable snapshot with defaults merged under and overrides merged
// over the loaded map.
func Load(ctx context.Context, fs FilesystemAdapter, dir string, defaults, overrides *PropertyMap) (*Config, error) {
	primary, backup := paths(dir)

	props, err := readCurrent(ctx, fs, primary, backup)
	if err != nil {
		return nil, err
	}

	effective := NewPropertyMap()
	if defaults != nil {
		for _, k := range defaults.Keys {
			effective.Set(k, defaults.Values[k])
		}
	}
	for _, k := range props.Keys {
		effective.Set(k, props.Values[k])
	}
	if overrides != nil {
		for _, k := range overrides.Keys {
			effective.Set(k, overrides.Values[k])
		}
	}

	return &Config{props: effective}, nil
}

// loadValid returns the current on-disk configuration without any
// defaults/overrides overlay — the view the update protocol mutates from.
func loadValid(ctx context.Context, fs FilesystemAdapter, primary, backup string) (*PropertyMap, error) {
	return readCurrent(ctx, fs, primary, backup)
}

func decodeFile(ctx context.Context, fs FilesystemAdapter, path string) (*PropertyMap, error) {
	exists, err := fs.Exists(ctx, path)
	if err != nil {
		return nil, wrapIOError("exists", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	data, err := fs.Read(ctx, path)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, wrapIOError("read", err)
	}
	return decode(data)
}

// readCurrent implements the read path's state machine: recover, decode
// primary, fall back to backup, and retry the whole sequence up to
// maxReadRetries times before raising ErrNotFound or ErrInvalidConfig.
func readCurrent(ctx context.Context, fs FilesystemAdapter, primary, backup string) (*PropertyMap, error) {
	primaryExists, err := fs.Exists(ctx, primary)
	if err != nil {
		return nil, wrapIOError("exists", err)
	}
	backupExists, err := fs.Exists(ctx, backup)
	if err != nil {
		return nil, wrapIOError("exists", err)
	}
	if !primaryExists && !backupExists {
		return nil, ErrNotFound
	}

	var lastErr error

	for attempt := 0; attempt < maxReadRetries; attempt++ {
		if err := RecoverIfNeeded(ctx, fs, primary, backup); err != nil {
			return nil, err
		}

		props, err := decodeFile(ctx, fs, primary)
		if err == nil {
			return props, nil
		}
		lastErr = err

		if backupProps, backupErr := decodeFile(ctx, fs, backup); backupErr == nil {
			// Primary is corrupt but backup is still valid: the backup
			// dominates. Promote it before returning, same as
			// RecoverIfNeeded's own invalid-primary/valid-backup branch.
			if primaryExists, existsErr := fs.Exists(ctx, primary); existsErr == nil && primaryExists {
				if delErr := fs.Delete(ctx, primary); delErr != nil {
					return nil, wrapIOError("delete invalid primary", delErr)
				}
			}
			if renameErr := fs.Rename(ctx, backup, primary); renameErr != nil {
				return nil, wrapIOError("promote backup", renameErr)
			}
			return backupProps, nil
		}

		if attempt < maxReadRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 2 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	primaryExists, _ = fs.Exists(ctx, primary)
	backupExists, _ = fs.Exists(ctx, backup)
	if !primaryExists && !backupExists {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, lastErr)
}
