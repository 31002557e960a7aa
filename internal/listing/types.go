package listing

import "github.com/jpequegn/testforge/internal/testspec"

// Dialect identifies a listing output format.
type Dialect string

const (
	DialectTerse Dialect = "terse"
	DialectJSON  Dialect = "json"
)

// Source carries the metadata the lister needs to stamp onto every
// TestInstance it produces; none of it is recoverable from the raw
// listing output itself.
type Source struct {
	BinaryID   string
	BinaryPath string
	CWD        string
	Platform   testspec.Platform
}

// Lister parses one dialect of listing output.
type Lister interface {
	Parse(output []byte, src Source) ([]testspec.TestInstance, error)
	Dialect() Dialect
}

// ParseError reports a malformed line with enough context to fix the
// input or the harness emitting it.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}
