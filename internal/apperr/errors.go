// Package apperr defines the error taxonomy shared by the conversion pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrOutputExists  = errors.New("output already exists")
	ErrDuplicateName = errors.New("duplicate entry name")
)

// Stage names used in StageError.
const (
	StageRead  = "read"
	StageMap   = "map"
	StageWrite = "write"
)

// NameParseError reports an entry name that is not "<ordinal>-<title>.<ext>".
type NameParseError struct {
	Entry  string
	Reason string
}

func (e *NameParseError) Error() string {
	return fmt.Sprintf("invalid entry name %q: %s", e.Entry, e.Reason)
}

// DocumentParseError reports entry bytes that are not a complete source document.
type DocumentParseError struct {
	Entry string
	Err   error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("invalid document in %q: %v", e.Entry, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// OutputIOError reports a failure creating, writing or finalizing the target archive.
type OutputIOError struct {
	Path string
	Err  error
}

func (e *OutputIOError) Error() string {
	return fmt.Sprintf("output %s: %v", e.Path, e.Err)
}

func (e *OutputIOError) Unwrap() error { return e.Err }

// StageError attributes a pipeline failure to an entry and a stage.
type StageError struct {
	Stage string
	Entry string
	Err   error
}

func (e *StageError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Entry, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
