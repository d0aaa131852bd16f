package colmap

import (
	"fmt"
)

// ParseError is returned when a line of a reconstruction table cannot be decoded.
type ParseError struct {
	Path  string // file the line came from, empty when reading from a bare io.Reader
	Line  int    // 1-based line number
	Field string // name of the offending field
	Err   error
}

func (e *ParseError) Error() string {
	src := e.Path
	if src == "" {
		src = "<input>"
	}
	if e.Line > 0 {
		src = fmt.Sprintf("%s:%d", src, e.Line)
	}
	if e.Err == nil {
		return fmt.Sprintf("colmap: %s: invalid %s", src, e.Field)
	}
	return fmt.Sprintf("colmap: %s: invalid %s: %v", src, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedModelError is returned when intrinsics are requested from a camera whose model
// the converter cannot interpret.
type UnsupportedModelError struct {
	CameraID int
	Model    string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("colmap: camera %d uses unsupported model %q, only %s is supported", e.CameraID, e.Model, ModelSimpleRadial)
}
