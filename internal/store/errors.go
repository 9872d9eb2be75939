package store

import "errors"

// Write errors.
var (
	ErrParentNotFound = errors.New("parent directory does not exist")
	ErrIsRoot         = errors.New("operation not permitted on root")
	ErrIsDirectory    = errors.New("path is a directory")
)

// ErrMalformedImport is returned by Import when the document cannot be
// decoded or fails validation. The live tree is left untouched.
var ErrMalformedImport = errors.New("malformed store export")
