// Package catalog defines the artist work items consumed by a batch run
// and the CSV loader that produces them.
package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Artist is one unit of work: a catalog record to enrich with a bio.
// Immutable after creation.
type Artist struct {
	ID   uuid.UUID
	Name string
	Data string // optional background material fed to the prompt
}

// NewArtist validates raw field values and builds an Artist.
// The id must be in canonical hyphenated UUID form; the name must be non-empty.
func NewArtist(id, name, data string) (Artist, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	// uuid.Parse also accepts braced, URN, and bare-hex forms; the catalog
	// format only permits the 36-character hyphenated rendering.
	if len(id) != 36 {
		return Artist{}, fmt.Errorf("artist_id %q is not a canonical UUID", id)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Artist{}, fmt.Errorf("artist_id %q is not a canonical UUID: %w", id, err)
	}

	if name == "" {
		return Artist{}, fmt.Errorf("artist_name is empty for id %s", parsed)
	}

	return Artist{
		ID:   parsed,
		Name: name,
		Data: strings.TrimSpace(data),
	}, nil
}

// HasData reports whether the record carries background material.
func (a Artist) HasData() bool {
	return a.Data != ""
}
