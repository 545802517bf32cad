package catalog

import (
	"errors"
	"fmt"
)

// ErrMissingSourceLocation is returned by a source adapter when an upstream
// descriptor has no fetchable payload location.
var ErrMissingSourceLocation = errors.New("descriptor has no source data location")

// ParseError reports an unparseable metadata field in an upstream descriptor.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransferError reports a network or storage failure during a header probe,
// bulk download, or upload. It is fatal for the dataset being processed but
// never for the run as a whole.
type TransferError struct {
	Op  string // "probe", "download", "upload", ...
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// DuplicateVersionError reports an attempt to commit a (namespace,
// short_name, version) triple that the index already holds. Prior versions
// are immutable; the attempt is rejected, never resolved by overwriting.
type DuplicateVersionError struct {
	Key IndexKey
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("snapshot %s already exists", e.Key)
}
