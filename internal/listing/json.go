package listing

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jpequegn/testforge/internal/testspec"
)

// jsonTestRecord is one newline-delimited JSON record as emitted by a
// wrapped harness behind a list-wrapper script.
type jsonTestRecord struct {
	TestName string `json:"test-name"`
	Ignored  bool   `json:"ignored"`
}

// JSONLister parses the newline-delimited JSON listing dialect.
type JSONLister struct{}

// NewJSONLister returns a lister for the JSON dialect.
func NewJSONLister() *JSONLister { return &JSONLister{} }

func (l *JSONLister) Dialect() Dialect { return DialectJSON }

func (l *JSONLister) Parse(output []byte, src Source) ([]testspec.TestInstance, error) {
	var tests []testspec.TestInstance
	scanner := bufio.NewScanner(bytes.NewReader(output))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec jsonTestRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("listing: invalid JSON record at line %d: %v", lineNo, err)}
		}
		if rec.TestName == "" {
			return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("listing: missing test-name at line %d", lineNo)}
		}
		tests = append(tests, testspec.TestInstance{
			BinaryID:   src.BinaryID,
			TestName:   rec.TestName,
			BinaryPath: src.BinaryPath,
			CWD:        src.CWD,
			Platform:   src.Platform,
			Ignored:    rec.Ignored,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("listing: reading JSON output: %w", err)
	}
	return tests, nil
}
