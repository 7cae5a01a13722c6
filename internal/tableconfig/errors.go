package tableconfig

import (
	"errors"

	latticeerr "github.com/latticedb/lattice/internal/errors"
)

// Sentinel errors for the table-configuration store. Each wraps a
// latticeerr.LatticeError so callers get category/code/retry classification
// through the same chain as the rest of the system.
var (
	// ErrNotFound means neither primary nor backup exists.
	ErrNotFound = latticeerr.New(latticeerr.ErrCategoryConfig, latticeerr.CodeConfigNotFound, "table configuration not found")

	// ErrInvalidConfig means a configuration file failed to decode (missing
	// or mismatched checksum, or a malformed line). Load returns it when a
	// file is present but neither primary nor backup decodes.
	ErrInvalidConfig = latticeerr.New(latticeerr.ErrCategoryConfig, latticeerr.CodeInvalidConfig, "table configuration is invalid or corrupt")

	// ErrAlreadyExists means Create was invoked against an already
	// initialized metadata directory.
	ErrAlreadyExists = latticeerr.New(latticeerr.ErrCategoryConfig, latticeerr.CodeConfigAlreadyExists, "table configuration already exists")
)

// wrapIOError classifies a filesystem adapter failure as a retryable
// storage error so callers and the error taxonomy in internal/errors can
// treat it uniformly with every other substrate failure in the system.
func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return latticeerr.Wrap(latticeerr.ErrCategoryStorage, latticeerr.CodeIOError, "tableconfig: "+op, err)
}

// IsNotFound reports whether err indicates no table identity file exists
// yet at the directory Load or readCurrent was pointed at.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
