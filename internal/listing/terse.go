package listing

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/jpequegn/testforge/internal/testspec"
)

// TerseLister parses the default "--list --format terse" dialect:
// one test per line, "<test name>: test" (or "<test name>: benchmark"
// for benchmark harnesses, tolerated identically). Blank lines and
// lines that don't match the suffix are ignored rather than treated
// as errors, since binaries often print banners or warnings first.
type TerseLister struct {
	// Ignored marks every produced instance as ignored. Set this when
	// parsing the output of a "--list --format terse --ignored" call.
	Ignored bool
}

// NewTerseLister returns a lister for the non-ignored test list.
func NewTerseLister() *TerseLister { return &TerseLister{} }

func (l *TerseLister) Dialect() Dialect { return DialectTerse }

func (l *TerseLister) Parse(output []byte, src Source) ([]testspec.TestInstance, error) {
	var tests []testspec.TestInstance
	scanner := bufio.NewScanner(bytes.NewReader(output))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		name, ok := splitTerseLine(line)
		if !ok {
			continue
		}
		tests = append(tests, testspec.TestInstance{
			BinaryID:   src.BinaryID,
			TestName:   name,
			BinaryPath: src.BinaryPath,
			CWD:        src.CWD,
			Platform:   src.Platform,
			Ignored:    l.Ignored,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("listing: reading terse output: %w", err)
	}
	return tests, nil
}

// splitTerseLine extracts the test name from a line of the form
// "<name>: test" or "<name>: benchmark".
func splitTerseLine(line string) (string, bool) {
	for _, suffix := range []string{": test", ": benchmark"} {
		if strings.HasSuffix(line, suffix) {
			name := strings.TrimSuffix(line, suffix)
			if name == "" {
				return "", false
			}
			return name, true
		}
	}
	return "", false
}
