package api

import (
	"bytes"
	"strings"
	"testing"
)

type sampleReport struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestOutputTo(t *testing.T) {
	report := sampleReport{Name: "artists", Count: 42}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatJSON, report); err != nil {
			t.Fatalf("OutputTo() error = %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, `"name": "artists"`) || !strings.Contains(out, `"count": 42`) {
			t.Errorf("unexpected json output: %s", out)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatYAML, report); err != nil {
			t.Fatalf("OutputTo() error = %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "name: artists") || !strings.Contains(out, "count: 42") {
			t.Errorf("unexpected yaml output: %s", out)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormat("xml"), report); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat("yaml")

	SetOutputFormat("json")
	if GetOutputFormat() != OutputFormatJSON {
		t.Errorf("format = %s, want json", GetOutputFormat())
	}

	SetOutputFormat("csv")
	if GetOutputFormat() != OutputFormatYAML {
		t.Errorf("unknown format fell back to %s, want yaml", GetOutputFormat())
	}
}
