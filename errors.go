package dynaval

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	// ErrItemNotFound is returned when an item is not found in DynamoDB operations.
	ErrItemNotFound = errors.New("item not found")

	// ErrEncoding is matched by every EncodingError.
	ErrEncoding = errors.New("encoding failed")

	// ErrDecoding is matched by every DecodingError.
	ErrDecoding = errors.New("decoding failed")

	// ErrUnsupportedType indicates a Go value with no tag mapping and no
	// registered capability.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNotMap indicates a root value that is not map-shaped.
	ErrNotMap = errors.New("value is not map-shaped")

	// ErrUnknownTag indicates a wire value whose tag code is not recognised.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrMissingKey indicates a record without the table's key attributes.
	ErrMissingKey = errors.New("missing key attribute")

	// ErrMalformed indicates a payload that does not fit the shape its tag
	// demands.
	ErrMalformed = errors.New("malformed value")
)

// EncodingError describes a value that could not be encoded. Path locates
// the offending value inside the input, e.g. "name.first" or "tags[2]".
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("dynaval: encode %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("dynaval: encode: %v", e.Err)
}

func (e *EncodingError) Unwrap() []error {
	return []error{ErrEncoding, e.Err}
}

// DecodingError describes a wire value that could not be decoded.
type DecodingError struct {
	Path string
	Tag  Tag
	Err  error
}

func (e *DecodingError) Error() string {
	var b strings.Builder
	b.WriteString("dynaval: decode")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Tag != "" {
		fmt.Fprintf(&b, " (%s)", e.Tag)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *DecodingError) Unwrap() []error {
	return []error{ErrDecoding, e.Err}
}

func encodingErr(path string, err error) error {
	var ee *EncodingError
	if errors.As(err, &ee) {
		return err
	}
	return &EncodingError{Path: path, Err: err}
}

func decodingErr(path string, tag Tag, err error) error {
	var de *DecodingError
	if errors.As(err, &de) {
		if de.Path == "" {
			de.Path = path
		}
		return de
	}
	return &DecodingError{Path: path, Tag: tag, Err: err}
}

// joinPath appends a map key to a path.
func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// indexPath appends a list index to a path.
func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
