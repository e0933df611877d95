package forkdb

import (
	"github.com/pkg/errors"
)

// Errors returned by fork database operations. Callers match them with
// errors.Is; additional context is attached at the call site.
var (
	// ErrRootNotSet is returned when an operation that requires an
	// initialized root runs before Reset.
	ErrRootNotSet = errors.New("fork database root is not set")

	// ErrUnlinkableBlock is returned by Add when the parent of the block
	// being added is neither the root nor present in the index.
	ErrUnlinkableBlock = errors.New("unlinkable block")

	// ErrDuplicateBlock is returned by Add when a block with the same id is
	// already present and duplicates are not being ignored.
	ErrDuplicateBlock = errors.New("duplicate block added")

	// ErrBlockNotFound is returned when a required block is absent from the
	// fork database.
	ErrBlockNotFound = errors.New("block not found in fork database")

	// ErrWouldRemoveHead is returned by Remove when the block or one of its
	// descendants is the current head.
	ErrWouldRemoveHead = errors.New("removing the block and its descendants would remove the current head block")

	// ErrBadMagic is returned when a fork database file starts with an
	// unexpected magic number.
	ErrBadMagic = errors.New("fork database file has unexpected magic number")

	// ErrUnsupportedVersion is returned when a fork database file carries a
	// version outside the supported range.
	ErrUnsupportedVersion = errors.New("unsupported version of fork database file")

	// ErrCorrupt is returned when a fork database file fails to reproduce a
	// consistent tree. The in-memory state is left as reconstructed up to
	// the failure point.
	ErrCorrupt = errors.New("fork database file is corrupted")

	// ErrValidatorRejected is returned when the protocol feature validator
	// rejects a block being added.
	ErrValidatorRejected = errors.New("fork database is incompatible with configured protocol features")
)

// IsNotFoundError returns whether err is an ErrBlockNotFound error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBlockNotFound)
}
