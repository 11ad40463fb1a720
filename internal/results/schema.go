package results

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed record_schema.json
var recordSchema []byte

// Verifier validates result lines against the record schema. Compile once,
// validate per line.
type Verifier struct {
	schema *jsonschema.Schema
}

// NewVerifier compiles the embedded record schema.
func NewVerifier() (*Verifier, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("record_schema.json", bytes.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("load record schema: %w", err)
	}
	schema, err := compiler.Compile("record_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &Verifier{schema: schema}, nil
}

// VerifyLine validates one JSONL line.
func (v *Verifier) VerifyLine(line []byte) error {
	var doc any
	if err := json.Unmarshal(line, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return err
	}
	return nil
}

// LineError reports one invalid line in a verified file.
type LineError struct {
	Line int    `json:"line" yaml:"line"`
	Err  string `json:"error" yaml:"error"`
}

// VerifyReport summarises a verification pass.
type VerifyReport struct {
	Total   int         `json:"total" yaml:"total"`
	Valid   int         `json:"valid" yaml:"valid"`
	Invalid []LineError `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// OK reports whether every line validated.
func (r VerifyReport) OK() bool {
	return len(r.Invalid) == 0
}

// VerifyFile validates every line of a result log against the record
// schema.
func (v *Verifier) VerifyFile(path string) (VerifyReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return VerifyReport{}, fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()
	return v.verify(f)
}

func (v *Verifier) verify(r io.Reader) (VerifyReport, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var report VerifyReport
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		report.Total++
		if err := v.VerifyLine(raw); err != nil {
			report.Invalid = append(report.Invalid, LineError{Line: line, Err: err.Error()})
			continue
		}
		report.Valid++
	}
	if err := scanner.Err(); err != nil {
		return VerifyReport{}, fmt.Errorf("read result log: %w", err)
	}
	return report, nil
}
