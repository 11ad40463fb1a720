package catalog

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

var (
	testID1 = "11111111-1111-1111-1111-111111111111"
	testID2 = "22222222-2222-2222-2222-222222222222"
	testID3 = "33333333-3333-3333-3333-333333333333"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestParse_HeaderDetection(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		loaded int
	}{
		{
			name:   "artist_id header",
			input:  "artist_id,artist_name,artist_data\n" + testID1 + ",Miles Davis,trumpet\n",
			loaded: 1,
		},
		{
			name:   "uppercase ID header",
			input:  "ID,Name\n" + testID1 + ",Miles Davis\n",
			loaded: 1,
		},
		{
			name:   "uuid header",
			input:  "UUID,name,data\n" + testID1 + ",Miles Davis,\n",
			loaded: 1,
		},
		{
			name:   "no header",
			input:  testID1 + ",Miles Davis\n" + testID2 + ",Nina Simone\n",
			loaded: 2,
		},
		{
			name:   "header after comment",
			input:  "# exported 2024-03-01\nartist_id,artist_name\n" + testID1 + ",Miles Davis\n",
			loaded: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artists, stats, err := Parse(strings.NewReader(tt.input), discardLogger())
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(artists) != tt.loaded {
				t.Errorf("expected %d artists, got %d", tt.loaded, len(artists))
			}
			if stats.Loaded != tt.loaded {
				t.Errorf("expected stats.Loaded=%d, got %d", tt.loaded, stats.Loaded)
			}
		})
	}
}

func TestParse_SkipsCommentsAndBlanks(t *testing.T) {
	input := "# catalog export\n" +
		"\n" +
		testID1 + ",Miles Davis,trumpet\n" +
		"   \n" +
		"# mid-file comment\n" +
		testID2 + ",Nina Simone\n"

	artists, stats, err := Parse(strings.NewReader(input), discardLogger())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(artists) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(artists))
	}
	if stats.Invalid != 0 {
		t.Errorf("expected no invalid rows, got %d", stats.Invalid)
	}
	if artists[0].Name != "Miles Davis" || artists[1].Name != "Nina Simone" {
		t.Errorf("unexpected names: %q, %q", artists[0].Name, artists[1].Name)
	}
	if artists[0].Data != "trumpet" {
		t.Errorf("expected data 'trumpet', got %q", artists[0].Data)
	}
	if artists[1].Data != "" {
		t.Errorf("expected empty data, got %q", artists[1].Data)
	}
}

func TestParse_InvalidRows(t *testing.T) {
	input := "artist_id,artist_name\n" +
		"not-a-uuid,Broken Row\n" + // bad UUID
		testID1 + ",\n" + // empty name
		testID2 + "\n" + // too few columns
		testID3 + ",Valid Artist\n"

	artists, stats, err := Parse(strings.NewReader(input), discardLogger())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(artists) != 1 {
		t.Fatalf("expected 1 artist, got %d", len(artists))
	}
	if stats.Rows != 4 {
		t.Errorf("expected 4 data rows, got %d", stats.Rows)
	}
	if stats.Invalid != 3 {
		t.Errorf("expected 3 invalid rows, got %d", stats.Invalid)
	}
	if artists[0].Name != "Valid Artist" {
		t.Errorf("unexpected surviving artist: %q", artists[0].Name)
	}
}

func TestParse_CRLF(t *testing.T) {
	input := "artist_id,artist_name,artist_data\r\n" +
		testID1 + ",Miles Davis,trumpet\r\n" +
		testID2 + ",Nina Simone,piano\r\n"

	artists, _, err := Parse(strings.NewReader(input), discardLogger())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(artists) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(artists))
	}
	if artists[1].Data != "piano" {
		t.Errorf("expected data 'piano', got %q", artists[1].Data)
	}
}

func TestNewArtist_CanonicalUUIDOnly(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"canonical", testID1, false},
		{"uppercase hex", "AAAAAAAA-BBBB-CCCC-DDDD-EEEEFFFF0000", false},
		{"braced", "{" + testID1 + "}", true},
		{"urn", "urn:uuid:" + testID1, true},
		{"bare hex", strings.ReplaceAll(testID1, "-", ""), true},
		{"garbage", "hello", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArtist(tt.id, "Some Artist", "")
			if tt.wantErr && err == nil {
				t.Errorf("expected error for id %q", tt.id)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for id %q: %v", tt.id, err)
			}
		})
	}
}

func TestFilterProcessed(t *testing.T) {
	artists := []Artist{
		{ID: uuid.MustParse(testID1), Name: "A"},
		{ID: uuid.MustParse(testID2), Name: "B"},
		{ID: uuid.MustParse(testID3), Name: "C"},
	}

	processed := map[uuid.UUID]struct{}{
		uuid.MustParse(testID2): {},
	}

	remaining := FilterProcessed(artists, processed)
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(remaining))
	}
	if remaining[0].Name != "A" || remaining[1].Name != "C" {
		t.Errorf("expected order preserved (A, C), got (%s, %s)", remaining[0].Name, remaining[1].Name)
	}

	// Empty set returns the input untouched.
	same := FilterProcessed(artists, nil)
	if len(same) != 3 {
		t.Errorf("expected all 3 artists with empty processed set, got %d", len(same))
	}
}
